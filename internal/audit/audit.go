// Package audit writes the raw-line capture of an agent invocation.
//
// The log is an append-only text file. Raw output lines are interleaved with
// marker lines of the form "=== ... ===" so a partial log left behind by a
// killed or hung process is still readable.
package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Log is an append-only audit file. Every line is written with a single
// write call so retries of the same task sharing one file never interleave
// mid-line. A nil *Log is valid and discards everything.
type Log struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	closed bool
}

// Open opens path for appending, creating it and its parent directory.
// An empty path returns a nil *Log.
func Open(path string) (*Log, error) {
	if path == "" {
		return nil, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	return &Log{f: f, path: path}, nil
}

// Path returns the file path, or "" for a nil log.
func (l *Log) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Line appends one raw line. Embedded trailing newlines are stripped so the
// file keeps one record per line.
func (l *Log) Line(s string) error {
	if l == nil {
		return nil
	}
	s = strings.TrimRight(s, "\r\n")
	return l.write(s + "\n")
}

// Started writes the PROCESS STARTED marker.
func (l *Log) Started(pid int) error {
	return l.marker(fmt.Sprintf("PROCESS STARTED (PID: %d)", pid))
}

// FirstOutput writes the FIRST OUTPUT marker.
func (l *Log) FirstOutput(elapsed time.Duration) error {
	return l.marker(fmt.Sprintf("FIRST OUTPUT: %.3fs", elapsed.Seconds()))
}

// Completed writes the PROCESS COMPLETED marker.
func (l *Log) Completed(exitCode int, duration time.Duration) error {
	return l.marker(fmt.Sprintf("PROCESS COMPLETED (exit code: %d, duration: %.1fs)", exitCode, duration.Seconds()))
}

// TimeoutExceeded writes the TIMEOUT EXCEEDED marker. The configured value
// is written exactly, so sub-second timeouts keep their fraction.
func (l *Log) TimeoutExceeded(configured, actual time.Duration) error {
	limit := strconv.FormatFloat(configured.Seconds(), 'f', -1, 64)
	return l.marker(fmt.Sprintf("TIMEOUT EXCEEDED (%ss, actual: %.1fs)", limit, actual.Seconds()))
}

// Killed writes the PROCESS KILLED marker for operator-requested kills.
func (l *Log) Killed(duration time.Duration) error {
	return l.marker(fmt.Sprintf("PROCESS KILLED (duration: %.1fs)", duration.Seconds()))
}

// Close closes the underlying file. Further writes are dropped.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	return l.f.Close()
}

func (l *Log) marker(body string) error {
	if l == nil {
		return nil
	}
	return l.write("=== " + body + " ===\n")
}

func (l *Log) write(s string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	_, err := l.f.WriteString(s)
	return err
}
