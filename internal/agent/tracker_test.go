package agent

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerFirstMarkWins(t *testing.T) {
	start := time.Now()
	tr := newTracker(start)
	assert.Equal(t, StateStarting, tr.current())

	_, ok := tr.firstOutput()
	assert.False(t, ok)

	elapsed, first := tr.mark(start.Add(150 * time.Millisecond))
	require.True(t, first)
	assert.Equal(t, 150*time.Millisecond, elapsed)
	assert.Equal(t, StateEngaged, tr.current())

	_, first = tr.mark(start.Add(time.Second))
	assert.False(t, first)

	got, ok := tr.firstOutput()
	require.True(t, ok)
	assert.Equal(t, 150*time.Millisecond, got)

	tr.finish()
	assert.Equal(t, StateFinished, tr.current())
}

func TestTrackerMarkAtStartStillCounts(t *testing.T) {
	start := time.Now()
	tr := newTracker(start)
	_, first := tr.mark(start)
	assert.True(t, first)
	_, ok := tr.firstOutput()
	assert.True(t, ok)
}

func TestTrackerConcurrentMark(t *testing.T) {
	tr := newTracker(time.Now())
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, first := tr.mark(time.Now()); first {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, firsts)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "starting", StateStarting.String())
	assert.Equal(t, "engaged", StateEngaged.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "unknown", State(9).String())
}
