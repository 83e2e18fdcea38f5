package audit

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestMarkers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "run.log")
	l, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, l.Started(4242))
	require.NoError(t, l.Line("hello\n"))
	require.NoError(t, l.FirstOutput(1500*time.Millisecond))
	require.NoError(t, l.Completed(0, 2*time.Second))
	require.NoError(t, l.TimeoutExceeded(5*time.Second, 5200*time.Millisecond))
	require.NoError(t, l.Killed(3*time.Second))
	require.NoError(t, l.Close())

	assert.Equal(t, []string{
		"=== PROCESS STARTED (PID: 4242) ===",
		"hello",
		"=== FIRST OUTPUT: 1.500s ===",
		"=== PROCESS COMPLETED (exit code: 0, duration: 2.0s) ===",
		"=== TIMEOUT EXCEEDED (5s, actual: 5.2s) ===",
		"=== PROCESS KILLED (duration: 3.0s) ===",
	}, readLines(t, path))
}

func TestTimeoutMarkerKeepsFraction(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := Open(path)
	require.NoError(t, err)

	require.NoError(t, l.TimeoutExceeded(500*time.Millisecond, 520*time.Millisecond))
	require.NoError(t, l.TimeoutExceeded(1500*time.Millisecond, 1600*time.Millisecond))
	require.NoError(t, l.Close())

	assert.Equal(t, []string{
		"=== TIMEOUT EXCEEDED (0.5s, actual: 0.5s) ===",
		"=== TIMEOUT EXCEEDED (1.5s, actual: 1.6s) ===",
	}, readLines(t, path))
}

func TestAppendAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")

	for i := 0; i < 2; i++ {
		l, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, l.Line("attempt"))
		require.NoError(t, l.Close())
	}

	assert.Equal(t, []string{"attempt", "attempt"}, readLines(t, path))
}

func TestConcurrentWritersKeepLinesWhole(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	a, err := Open(path)
	require.NoError(t, err)
	b, err := Open(path)
	require.NoError(t, err)

	line := strings.Repeat("x", 512)
	var wg sync.WaitGroup
	for _, l := range []*Log{a, b} {
		wg.Add(1)
		go func(l *Log) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = l.Line(line)
			}
		}(l)
	}
	wg.Wait()
	require.NoError(t, a.Close())
	require.NoError(t, b.Close())

	lines := readLines(t, path)
	assert.Len(t, lines, 400)
	for _, got := range lines {
		assert.Equal(t, line, got)
	}
}

func TestNilLogDiscards(t *testing.T) {
	l, err := Open("")
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.NoError(t, l.Line("ignored"))
	assert.NoError(t, l.Started(1))
	assert.NoError(t, l.Close())
	assert.Equal(t, "", l.Path())
}

func TestWriteAfterCloseIsDropped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	assert.NoError(t, l.Line("late"))
	assert.NoError(t, l.Close())
}
