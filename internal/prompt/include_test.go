package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestExpandNoIncludes(t *testing.T) {
	got, err := Expand("plain prompt", t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "plain prompt" {
		t.Errorf("expected content unchanged, got %q", got)
	}
}

func TestExpandNested(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "shared", "style.md"), "Be brief. {{include: rules}}")
	writeFile(t, filepath.Join(dir, "shared", "rules.md"), "No globals.")

	got, err := Expand("Task.\n{{include: shared/style}}\nEnd.", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Task.\nBe brief. No globals.\nEnd."
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestExpandSameFileTwice(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sig.md"), "--")

	got, err := Expand("{{include: sig}} a {{include:sig.md}}", dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "-- a --" {
		t.Errorf("expected %q, got %q", "-- a --", got)
	}
}

func TestExpandErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.md"), "{{include: b}}")
	writeFile(t, filepath.Join(dir, "b.md"), "{{include: a}}")
	writeFile(t, filepath.Join(dir, "bin.md"), "x\x00y")

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing", "{{include: nope}}", "not found"},
		{"circular", "{{include: a}}", "circular include"},
		{"binary", "{{include: bin}}", "binary"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Expand(tt.content, dir)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ctx.md"), "context")
	path := filepath.Join(dir, "prompt.md")
	writeFile(t, path, "Fix it using {{include: ctx}}.")

	got, err := LoadFile(path, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Fix it using context." {
		t.Errorf("unexpected prompt %q", got)
	}
}

func TestLoadFileStdin(t *testing.T) {
	got, err := LoadFile("-", strings.NewReader("from stdin"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from stdin" {
		t.Errorf("expected %q, got %q", "from stdin", got)
	}
}

func TestIncludes(t *testing.T) {
	refs := Includes("{{include: a}} and {{include:  b/c.md }}")
	if len(refs) != 2 || refs[0] != "a" || refs[1] != "b/c.md" {
		t.Errorf("unexpected refs %v", refs)
	}
	if Includes("none") != nil {
		t.Error("expected nil for content without includes")
	}
}
