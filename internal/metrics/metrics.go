package metrics

import (
	"sync/atomic"
	"time"
)

type Counter struct {
	value uint64
}

func (c *Counter) Inc() {
	atomic.AddUint64(&c.value, 1)
}

func (c *Counter) Load() uint64 {
	return atomic.LoadUint64(&c.value)
}

type Timer struct {
	start time.Time
}

func StartTimer() *Timer {
	return &Timer{start: time.Now()}
}

func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ConfirmStats counts confirmation attempts by result. The zero value is
// ready to use.
type ConfirmStats struct {
	Attempts   Counter
	Confirmed  Counter
	Duplicates Counter
	Failed     Counter
}

type ConfirmSnapshot struct {
	Attempts   uint64 `json:"attempts"`
	Confirmed  uint64 `json:"confirmed"`
	Duplicates uint64 `json:"duplicates"`
	Failed     uint64 `json:"failed"`
}

func (s *ConfirmStats) Snapshot() ConfirmSnapshot {
	return ConfirmSnapshot{
		Attempts:   s.Attempts.Load(),
		Confirmed:  s.Confirmed.Load(),
		Duplicates: s.Duplicates.Load(),
		Failed:     s.Failed.Load(),
	}
}
