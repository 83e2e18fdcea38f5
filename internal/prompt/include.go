// Package prompt loads agent prompts from files, expanding include directives.
package prompt

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// A directive looks like {{include: shared/style}}; the path is relative to
// the file containing it and ".md" is assumed when no extension is given.
var includeRe = regexp.MustCompile(`\{\{include:\s*([^}]+)\}\}`)

const maxDepth = 10

// LoadFile reads a prompt file and expands its includes. A path of "-"
// reads stdin, with includes resolved against the working directory.
func LoadFile(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read prompt from stdin: %w", err)
		}
		return Expand(string(data), ".")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	if looksBinary(data) {
		return "", fmt.Errorf("prompt file %q appears to be binary", path)
	}
	return Expand(string(data), filepath.Dir(path))
}

// Expand replaces every include directive in content with the referenced
// file, recursively. A file may appear more than once, but never inside
// its own include chain.
func Expand(content, baseDir string) (string, error) {
	return expand(content, baseDir, 0, map[string]bool{})
}

func expand(content, baseDir string, depth int, chain map[string]bool) (string, error) {
	if depth > maxDepth {
		return "", fmt.Errorf("includes nested deeper than %d levels", maxDepth)
	}

	matches := includeRe.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		ref := strings.TrimSpace(content[m[2]:m[3]])
		path, err := resolve(ref, baseDir)
		if err != nil {
			return "", err
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("include %q: %w", ref, err)
		}
		if chain[abs] {
			return "", fmt.Errorf("circular include: %s", abs)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("include %q: %w", ref, err)
		}
		if looksBinary(data) {
			return "", fmt.Errorf("include %q appears to be binary", ref)
		}

		chain[abs] = true
		nested, err := expand(string(data), filepath.Dir(path), depth+1, chain)
		delete(chain, abs)
		if err != nil {
			return "", fmt.Errorf("in %s: %w", ref, err)
		}

		b.WriteString(content[last:m[0]])
		b.WriteString(nested)
		last = m[1]
	}
	b.WriteString(content[last:])
	return b.String(), nil
}

// Includes lists the include references in content without touching disk.
func Includes(content string) []string {
	var refs []string
	for _, m := range includeRe.FindAllStringSubmatch(content, -1) {
		refs = append(refs, strings.TrimSpace(m[1]))
	}
	return refs
}

func resolve(ref, baseDir string) (string, error) {
	path := ref
	if !filepath.IsAbs(path) {
		if filepath.Ext(path) == "" {
			path += ".md"
		}
		path = filepath.Join(baseDir, path)
	}
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("include %q not found (looked for %s)", ref, path)
	}
	return path, nil
}

// looksBinary checks the first 8KB for NUL bytes.
func looksBinary(data []byte) bool {
	if len(data) > 8192 {
		data = data[:8192]
	}
	return bytes.IndexByte(data, 0) >= 0
}
