package output

import (
	"bytes"
	"io"
	"sync"

	"github.com/fatih/color"
)

// PrefixedWriter wraps an io.Writer and prefixes each line with a colored stream identifier.
// It buffers partial lines and only writes complete lines to prevent interleaving.
type PrefixedWriter struct {
	out    io.Writer
	prefix string
	color  *color.Color
	mu     *sync.Mutex // shared mutex for synchronized writes
	buf    bytes.Buffer
}

// NewPrefixedWriter creates a new PrefixedWriter with the given prefix and color.
// The mutex should be shared with every other writer on the same terminal.
func NewPrefixedWriter(out io.Writer, prefix string, c *color.Color, mu *sync.Mutex) *PrefixedWriter {
	return &PrefixedWriter{
		out:    out,
		prefix: prefix,
		color:  c,
		mu:     mu,
	}
}

// Write implements io.Writer. It buffers input and writes complete lines with prefix.
func (w *PrefixedWriter) Write(p []byte) (n int, err error) {
	n = len(p) // We always "consume" all bytes from caller's perspective

	w.buf.Write(p)

	// Process complete lines
	for {
		line, err := w.buf.ReadBytes('\n')
		if err != nil {
			// No complete line yet - put back what we read
			w.buf.Write(line)
			break
		}
		w.writeLine(line)
	}

	return n, nil
}

// WriteLine writes one line that arrives without its terminator, as the
// agent runner delivers stderr.
func (w *PrefixedWriter) WriteLine(line string) {
	w.writeLine(append([]byte(line), '\n'))
}

// writeLine writes a single line with the colored prefix, holding the mutex.
func (w *PrefixedWriter) writeLine(line []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.color.Fprintf(w.out, "%s | ", w.prefix)
	w.out.Write(line)
}

// Flush writes any remaining buffered content (partial line without newline).
func (w *PrefixedWriter) Flush() {
	if w.buf.Len() == 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.color.Fprintf(w.out, "%s | ", w.prefix)
	w.out.Write(w.buf.Bytes())
	w.out.Write([]byte("\n"))
	w.buf.Reset()
}

// lockedWriter serializes writes with the prefixed writers of a Console.
type lockedWriter struct {
	out io.Writer
	mu  *sync.Mutex
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Write(p)
}

// Console is the terminal view of one agent run: rendered events on one
// writer and the agent's own diagnostics, prefixed, on another.
type Console struct {
	mu     *sync.Mutex
	events io.Writer
	stderr *PrefixedWriter
}

// NewConsole creates a Console. events and diag may be the same writer;
// lines never interleave mid-line either way.
func NewConsole(events, diag io.Writer) *Console {
	mu := &sync.Mutex{}
	return &Console{
		mu:     mu,
		events: &lockedWriter{out: events, mu: mu},
		stderr: NewPrefixedWriter(diag, "stderr", color.New(color.FgYellow), mu),
	}
}

// Events returns the writer for rendered agent events.
func (c *Console) Events() io.Writer {
	return c.events
}

// Stderr returns the writer for the agent's stderr lines.
func (c *Console) Stderr() *PrefixedWriter {
	return c.stderr
}

// Flush writes any partial stderr line.
func (c *Console) Flush() {
	c.stderr.Flush()
}
