package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Storage.Path != filepath.Join(DefaultConfigDir, DefaultStoreFile) {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if !cfg.Audit.Enabled {
		t.Error("Audit should be enabled by default")
	}
	if cfg.Audit.LogReads {
		t.Error("Read logging should be off by default")
	}
}

func TestInitializeAndLoad(t *testing.T) {
	root := t.TempDir()

	cfg, err := Initialize(root)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	info, err := os.Stat(filepath.Join(root, DefaultConfigDir))
	if err != nil {
		t.Fatalf("Config directory missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != DirPermSecure {
		t.Errorf("Config directory permissions = %o, want %o", perm, DirPermSecure)
	}

	cfg.DefaultTags = []string{"team-a"}
	cfg.Audit.LogReads = true
	if err := Save(root, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(root)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.DefaultTags) != 1 || loaded.DefaultTags[0] != "team-a" {
		t.Errorf("DefaultTags = %v", loaded.DefaultTags)
	}
	if !loaded.Audit.LogReads {
		t.Error("Audit.LogReads should round trip")
	}
}

func TestInitializeKeepsExistingConfig(t *testing.T) {
	root := t.TempDir()

	cfg, err := Initialize(root)
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	cfg.DefaultTags = []string{"keep-me"}
	if err := Save(root, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	again, err := Initialize(root)
	if err != nil {
		t.Fatalf("Second Initialize failed: %v", err)
	}
	if len(again.DefaultTags) != 1 || again.DefaultTags[0] != "keep-me" {
		t.Errorf("Re-initialize overwrote config: %v", again.DefaultTags)
	}
}

func TestFindRoot(t *testing.T) {
	root := t.TempDir()
	if _, err := Initialize(root); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	nested := filepath.Join(root, "services", "api")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatalf("MkdirAll failed: %v", err)
	}

	found, err := FindRoot(nested)
	if err != nil {
		t.Fatalf("FindRoot failed: %v", err)
	}
	// Resolve symlinks: on some systems TempDir returns a symlinked path
	wantReal, _ := filepath.EvalSymlinks(root)
	foundReal, _ := filepath.EvalSymlinks(found)
	if foundReal != wantReal {
		t.Errorf("FindRoot = %q, want %q", found, root)
	}

	if _, err := FindRoot(t.TempDir()); !errors.Is(err, ErrNoProject) {
		t.Errorf("FindRoot outside a project = %v, want ErrNoProject", err)
	}
}

func TestPathResolution(t *testing.T) {
	cfg := Default()

	got := cfg.StorePath("/project")
	want := filepath.Join("/project", DefaultConfigDir, DefaultStoreFile)
	if got != want {
		t.Errorf("StorePath = %q, want %q", got, want)
	}

	cfg.Storage.Path = "/var/lib/crux/store.db"
	if got := cfg.StorePath("/project"); got != "/var/lib/crux/store.db" {
		t.Errorf("Absolute StorePath = %q", got)
	}

	cfg.Audit.Path = "logs/audit.log"
	if got := cfg.AuditPath("/project"); got != filepath.Join("/project", "logs/audit.log") {
		t.Errorf("AuditPath = %q", got)
	}
}
