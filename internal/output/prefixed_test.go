package output

import (
	"bytes"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
)

func init() {
	// Disable color output in tests for easier string matching
	color.NoColor = true
}

func TestPrefixedWriter_SingleLine(t *testing.T) {
	var buf bytes.Buffer
	mu := &sync.Mutex{}

	w := NewPrefixedWriter(&buf, "stderr", color.New(color.FgYellow), mu)
	w.Write([]byte("rate limited, retrying\n"))

	got := buf.String()
	want := "stderr | rate limited, retrying\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrefixedWriter_PartialLines(t *testing.T) {
	var buf bytes.Buffer
	mu := &sync.Mutex{}

	w := NewPrefixedWriter(&buf, "stderr", color.New(color.FgYellow), mu)

	// Write partial line
	w.Write([]byte("hel"))
	if buf.Len() != 0 {
		t.Error("partial line should be buffered, not written")
	}

	// Complete the line
	w.Write([]byte("lo\nwor"))
	got := buf.String()
	want := "stderr | hello\n"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	// Flush should write the rest with a newline
	w.Flush()
	want += "stderr | wor\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestPrefixedWriter_FlushEmpty(t *testing.T) {
	var buf bytes.Buffer
	w := NewPrefixedWriter(&buf, "stderr", color.New(color.FgYellow), &sync.Mutex{})

	// Flush with nothing buffered should be a no-op
	w.Flush()
	if buf.Len() != 0 {
		t.Error("flush of empty buffer should write nothing")
	}
}

func TestPrefixedWriter_WriteLine(t *testing.T) {
	var buf bytes.Buffer
	w := NewPrefixedWriter(&buf, "stderr", color.New(color.FgYellow), &sync.Mutex{})

	w.WriteLine("one")
	w.WriteLine("")

	want := "stderr | one\nstderr | \n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConsole_SharedOutput(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, &buf)

	c.Events().Write([]byte("[assistant]\nhello\n"))
	c.Stderr().WriteLine("warning")
	c.Stderr().Write([]byte("partial"))
	c.Flush()

	want := "[assistant]\nhello\nstderr | warning\nstderr | partial\n"
	if got := buf.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestConsole_Concurrent(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf, &buf)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.Events().Write([]byte("event line\n"))
		}
	}()

	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			c.Stderr().WriteLine("diagnostic line")
		}
	}()

	wg.Wait()

	// Count lines - should be exactly 200
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 200 {
		t.Errorf("got %d lines, want 200", len(lines))
	}

	for i, line := range lines {
		if line != "event line" && line != "stderr | diagnostic line" {
			t.Errorf("line %d interleaved: %q", i, line)
		}
	}
}
