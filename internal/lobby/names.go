package lobby

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const maxNameRunes = 24

// normalizeName folds compatibility forms, strips control characters and
// caps the length.
func normalizeName(raw string) string {
	s := norm.NFKC.String(raw)
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > maxNameRunes {
		s = strings.TrimSpace(string([]rune(s)[:maxNameRunes]))
	}
	return s
}

// uniqueName returns the display name for session id, suffixing " (n)" when
// another session already uses the name in any letter case.
func (c *Coordinator) uniqueName(raw string, id int) string {
	name := normalizeName(raw)
	if name == "" {
		name = fmt.Sprintf("Player %d", id)
	}

	fold := cases.Fold()
	taken := make(map[string]bool)
	for _, s := range c.sessions.Snapshot() {
		if s.InstanceID != id {
			taken[fold.String(s.Name)] = true
		}
	}

	candidate := name
	for n := 2; taken[fold.String(candidate)]; n++ {
		candidate = fmt.Sprintf("%s (%d)", name, n)
	}
	return candidate
}
