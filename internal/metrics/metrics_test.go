package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCounter(t *testing.T) {
	var c Counter
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Inc()
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(50), c.Load())
}

func TestTimer(t *testing.T) {
	timer := StartTimer()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, timer.Duration(), 5*time.Millisecond)
}

func TestConfirmStats(t *testing.T) {
	var s ConfirmStats
	s.Attempts.Inc()
	s.Attempts.Inc()
	s.Attempts.Inc()
	s.Confirmed.Inc()
	s.Duplicates.Inc()
	s.Failed.Inc()

	assert.Equal(t, ConfirmSnapshot{Attempts: 3, Confirmed: 1, Duplicates: 1, Failed: 1}, s.Snapshot())
}
