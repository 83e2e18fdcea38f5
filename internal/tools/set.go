package tools

import (
	"strings"
)

// Set is an ordered, duplicate-free set of canonical tool names, or the
// "all tools" sentinel. The zero value is the empty set: no tools allowed.
type Set struct {
	all   bool
	names []string
}

// All returns the sentinel set permitting every tool.
func All() Set {
	return Set{all: true}
}

// None returns the explicitly empty set.
func None() Set {
	return Set{}
}

// NewSet builds a set from canonical names, dropping blanks and duplicates
// while keeping first-seen order.
func NewSet(names ...string) Set {
	var s Set
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		s.names = append(s.names, n)
	}
	return s
}

// ParseSet parses a user-supplied tool list. "all" or "*" yields the All
// sentinel; "" or "none" yields the empty set; anything else is split on
// commas and whitespace.
func ParseSet(raw string) Set {
	trimmed := strings.TrimSpace(raw)
	switch strings.ToLower(trimmed) {
	case "all", "*":
		return All()
	case "", "none":
		return None()
	}
	fields := strings.FieldsFunc(trimmed, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	return NewSet(fields...)
}

// IsAll reports whether s is the All sentinel.
func (s Set) IsAll() bool {
	return s.all
}

// Len returns the number of names; 0 for the All sentinel.
func (s Set) Len() int {
	return len(s.names)
}

// Names returns a copy of the names in order.
func (s Set) Names() []string {
	return append([]string(nil), s.names...)
}

// String renders the set the way ParseSet accepts it.
func (s Set) String() string {
	if s.all {
		return "all"
	}
	if len(s.names) == 0 {
		return "none"
	}
	return strings.Join(s.names, ",")
}

// MarshalText implements encoding.TextMarshaler so a Set can live in TOML
// and JSON documents as a plain string.
func (s Set) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Set) UnmarshalText(text []byte) error {
	*s = ParseSet(string(text))
	return nil
}
