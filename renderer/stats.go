package renderer

import (
	"time"
)

// Stats are counters and CPU timings of submitted frames. Frame times are
// measured with the high resolution clock from BeginFrame until present.
type Stats struct {
	Frames      uint64
	Dropped     uint64
	Recreations uint64

	LastFrame  time.Duration
	MaxFrame   time.Duration
	TotalFrame time.Duration
}

// AverageFrame returns the mean CPU time of a submitted frame.
func (s Stats) AverageFrame() time.Duration {
	if s.Frames == 0 {
		return 0
	}
	return s.TotalFrame / time.Duration(s.Frames)
}

func (s *Stats) record(d time.Duration) {
	s.Frames++
	s.LastFrame = d
	s.TotalFrame += d
	if d > s.MaxFrame {
		s.MaxFrame = d
	}
}
