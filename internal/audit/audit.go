// Package audit defines the structured events the vault emits for every
// mutation and read attempt. The core only produces Event values; sinks own
// persistence format and location.
package audit

import (
	"os"
	"time"

	"go.uber.org/zap"
)

// Event is one audit record
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	User      string         `json:"user"`
	Action    string         `json:"action"`
	Path      string         `json:"path"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewEvent builds an event stamped with the current time and OS user
func NewEvent(action, path string, success bool) Event {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return Event{
		Timestamp: time.Now().UTC(),
		User:      user,
		Action:    action,
		Path:      path,
		Success:   success,
	}
}

// Sink consumes audit events. Implementations must not block vault
// operations on sink failures.
type Sink interface {
	Record(e Event)
}

// NopSink discards all events
type NopSink struct{}

func (NopSink) Record(Event) {}

// readActions are suppressed unless the sink is configured to log reads
var readActions = map[string]bool{
	"get":     true,
	"list":    true,
	"history": true,
	"status":  true,
	"diff":    true,
	"log":     true,
}

// ZapSink renders events through a zap logger. Reads are dropped unless
// LogReads is set.
type ZapSink struct {
	Logger   *zap.Logger
	LogReads bool
}

// NewZapSink wraps a zap logger as an audit sink
func NewZapSink(logger *zap.Logger, logReads bool) *ZapSink {
	return &ZapSink{Logger: logger, LogReads: logReads}
}

func (s *ZapSink) Record(e Event) {
	if s.Logger == nil {
		return
	}
	if !s.LogReads && readActions[e.Action] {
		return
	}

	fields := []zap.Field{
		zap.Time("timestamp", e.Timestamp),
		zap.String("user", e.User),
		zap.String("action", e.Action),
		zap.String("path", e.Path),
		zap.Bool("success", e.Success),
	}
	if e.Error != "" {
		fields = append(fields, zap.String("error", e.Error))
	}
	if len(e.Metadata) > 0 {
		fields = append(fields, zap.Any("metadata", e.Metadata))
	}

	s.Logger.Info("audit", fields...)
}
