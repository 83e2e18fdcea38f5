// Package tools translates canonical tool names into each backend's
// vocabulary. Names missing from the table are derived best-effort: the JSON
// dialect lower-cases them into snake_case words, while the text dialect
// keeps them unchanged because its vocabulary is the canonical one.
package tools

import (
	"strings"
	"unicode"
)

// Dialect identifies the tool vocabulary a backend CLI understands.
type Dialect string

const (
	// DialectText is the vocabulary of the text-streaming backend, which uses
	// the canonical capitalized names directly.
	DialectText Dialect = "text"

	// DialectJSON is the vocabulary of the JSON-streaming backend (snake_case).
	DialectJSON Dialect = "json"
)

// Mapping is the outcome of translating one canonical tool name.
type Mapping struct {
	Canonical string
	Name      string
	// BestEffort is true when the name was not found in the table and Name
	// was derived from the canonical form instead.
	BestEffort bool
}

// table maps canonical names to per-dialect names. Each dialect column must
// be injective so the reverse lookup is unambiguous.
var table = map[string]map[Dialect]string{
	"Read":      {DialectText: "Read", DialectJSON: "read_file"},
	"Write":     {DialectText: "Write", DialectJSON: "write_file"},
	"Edit":      {DialectText: "Edit", DialectJSON: "replace"},
	"Bash":      {DialectText: "Bash", DialectJSON: "run_shell_command"},
	"Grep":      {DialectText: "Grep", DialectJSON: "search_file_content"},
	"Glob":      {DialectText: "Glob", DialectJSON: "glob"},
	"LS":        {DialectText: "LS", DialectJSON: "list_directory"},
	"WebSearch": {DialectText: "WebSearch", DialectJSON: "google_web_search"},
	"WebFetch":  {DialectText: "WebFetch", DialectJSON: "web_fetch"},
	"TodoWrite": {DialectText: "TodoWrite", DialectJSON: "write_todos"},
	"ReadMany":  {DialectText: "ReadMany", DialectJSON: "read_many_files"},
	"Memory":    {DialectText: "Memory", DialectJSON: "save_memory"},
}

// reverse is built once from table: dialect -> backend name -> canonical.
var reverse = buildReverse()

func buildReverse() map[Dialect]map[string]string {
	r := make(map[Dialect]map[string]string)
	for canonical, names := range table {
		for dialect, name := range names {
			if r[dialect] == nil {
				r[dialect] = make(map[string]string)
			}
			r[dialect][name] = canonical
		}
	}
	return r
}

// Known returns the canonical names present in the table, sorted in the
// order they are usually presented to users.
func Known() []string {
	return []string{
		"Read", "Write", "Edit", "Bash", "Grep", "Glob", "LS",
		"WebSearch", "WebFetch", "TodoWrite", "ReadMany", "Memory",
	}
}

// Translate maps a canonical tool name into the given dialect. Unknown names
// never fail: they are derived deterministically and flagged as best-effort.
func Translate(d Dialect, canonical string) Mapping {
	canonical = strings.TrimSpace(canonical)
	if names, ok := table[canonical]; ok {
		if name, ok := names[d]; ok {
			return Mapping{Canonical: canonical, Name: name}
		}
	}
	return Mapping{Canonical: canonical, Name: derive(d, canonical), BestEffort: true}
}

// TranslateAll translates every name in the set. The returned names keep the
// set's order and drop duplicates produced by translation. For the All
// sentinel both return values are nil.
func TranslateAll(d Dialect, s Set) ([]string, []Mapping) {
	if s.IsAll() {
		return nil, nil
	}
	names := make([]string, 0, s.Len())
	report := make([]Mapping, 0, s.Len())
	seen := make(map[string]bool)
	for _, canonical := range s.Names() {
		m := Translate(d, canonical)
		report = append(report, m)
		if m.Name == "" || seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		names = append(names, m.Name)
	}
	return names, report
}

// Canonical reverse-maps a backend tool name to its canonical name. The
// boolean is false when the name is not in the table; the returned string is
// then the input unchanged.
func Canonical(d Dialect, name string) (string, bool) {
	if canonical, ok := reverse[d][name]; ok {
		return canonical, true
	}
	return name, false
}

// derive produces the fallback backend name for a canonical name missing
// from the table. Text names pass through; JSON names become snake_case.
func derive(d Dialect, canonical string) string {
	switch d {
	case DialectJSON:
		return snakeCase(canonical)
	default:
		return canonical
	}
}

// snakeCase converts "WebSearchV2" to "web_search_v2" and "HTTPFetch" to
// "http_fetch". Runs of non-alphanumeric characters collapse to one "_".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	lastUnderscore := true
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
			continue
		}
		if unicode.IsUpper(r) && i > 0 && !lastUnderscore {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
		lastUnderscore = false
	}
	return strings.TrimSuffix(b.String(), "_")
}
