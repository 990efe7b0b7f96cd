package vault

import (
	"regexp"
	"strings"
)

// tokenPattern matches ${NAME} where NAME is a secret path
var tokenPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// CircularReferenceError reports a reference cycle hit during variable
// expansion. Cycle lists the paths in expansion order, ending with the
// re-entered path.
type CircularReferenceError struct {
	Cycle []string
}

func (e *CircularReferenceError) Error() string {
	return "circular reference: " + strings.Join(e.Cycle, " -> ")
}

// expandFrom runs variable expansion for a value read from path. The path
// itself starts on the expansion stack so self-references are cycles.
func (s *Session) expandFrom(path, raw string) (string, error) {
	return s.expand(raw, []string{path}, map[string]bool{path: true})
}

// expand substitutes every ${NAME} token in raw with the recursively
// expanded decrypted value of the live path NAME in the working tree.
// Tokens whose path is absent stay verbatim. onStack is the explicit set of
// paths currently being expanded; re-entering one is a cycle. Expansion
// never writes back to stored values.
func (s *Session) expand(raw string, stack []string, onStack map[string]bool) (string, error) {
	matches := tokenPattern.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) == 0 {
		return raw, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(raw[last:m[0]])
		last = m[1]
		name := raw[m[2]:m[3]]

		if onStack[name] {
			cycle := append(append([]string(nil), stack...), name)
			return "", &CircularReferenceError{Cycle: cycle}
		}

		version, ok := s.resolveVersion(name)
		if !ok {
			// Unknown name: leave the token as-is
			b.WriteString(raw[m[0]:m[1]])
			continue
		}

		_, value, err := s.loadVersion(name, version)
		if err != nil {
			return "", err
		}

		onStack[name] = true
		expanded, err := s.expand(value, append(stack, name), onStack)
		delete(onStack, name)
		if err != nil {
			return "", err
		}
		b.WriteString(expanded)
	}
	b.WriteString(raw[last:])
	return b.String(), nil
}
