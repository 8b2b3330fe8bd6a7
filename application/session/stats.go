package session

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Cycles longer than this are recorded as this.
const maxTrackedCycle = time.Hour

// Stats records the duration of every cycle of a session, in microseconds.
type Stats struct {
	hist      *hdrhistogram.Histogram
	attempted int
	succeeded int
}

func NewStats() *Stats {
	return &Stats{hist: hdrhistogram.New(1, maxTrackedCycle.Microseconds(), 3)}
}

func (s *Stats) Record(d time.Duration, ok bool) {
	s.attempted++
	if ok {
		s.succeeded++
	}

	us := min(max(d.Microseconds(), 1), maxTrackedCycle.Microseconds())
	// The value is clamped into range, so recording cannot fail.
	_ = s.hist.RecordValue(us)
}

func (s *Stats) Attempted() int { return s.attempted }
func (s *Stats) Succeeded() int { return s.succeeded }

// Percentile returns the duration below which p percent of cycles fall.
func (s *Stats) Percentile(p float64) time.Duration {
	return time.Duration(s.hist.ValueAtQuantile(p)) * time.Microsecond
}
