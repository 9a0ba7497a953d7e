package flood

import (
	"sync/atomic"
	"time"

	"github.com/vovakirdan/ircflood/internal/core"
)

// Stats holds the counters of one session. Safe for concurrent use; the
// scheduler writes while the status endpoint reads.
type Stats struct {
	start    time.Time
	events   atomic.Int64
	linesOut atomic.Int64
	bytesOut atomic.Int64
	linesIn  atomic.Int64
	bytesIn  atomic.Int64
	stalls   atomic.Int64
	kinds    [core.KindSelfJoin + 1]atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Events       int64            `json:"events"`
	LinesOut     int64            `json:"lines_out"`
	BytesOut     int64            `json:"bytes_out"`
	LinesIn      int64            `json:"lines_in"`
	BytesIn      int64            `json:"bytes_in"`
	Stalls       int64            `json:"stalls"`
	Kinds        map[string]int64 `json:"kinds"`
	ElapsedMs    int64            `json:"elapsed_ms"`
	EventsPerSec float64          `json:"events_per_second"`
	LinesPerSec  float64          `json:"lines_per_second"`
	BytesPerSec  float64          `json:"bytes_per_second"`
}

// NewStats returns zeroed counters with the clock started now.
func NewStats() *Stats {
	return &Stats{start: time.Now()}
}

// Start returns when the counters were created.
func (s *Stats) Start() time.Time { return s.start }

// Events returns the number of events written so far.
func (s *Stats) Events() int64 { return s.events.Load() }

func (s *Stats) addEvent(kind core.EventKind) {
	s.events.Add(1)
	if int(kind) >= 0 && int(kind) < len(s.kinds) {
		s.kinds[kind].Add(1)
	}
}

func (s *Stats) addOut(lines, bytes int) {
	s.linesOut.Add(int64(lines))
	s.bytesOut.Add(int64(bytes))
}

func (s *Stats) addIn(bytes int) {
	s.linesIn.Add(1)
	s.bytesIn.Add(int64(bytes))
}

func (s *Stats) addStall() {
	s.stalls.Add(1)
}

// Snapshot copies the counters and derives rates from the elapsed time.
func (s *Stats) Snapshot() Snapshot {
	snap := Snapshot{
		Events:   s.events.Load(),
		LinesOut: s.linesOut.Load(),
		BytesOut: s.bytesOut.Load(),
		LinesIn:  s.linesIn.Load(),
		BytesIn:  s.bytesIn.Load(),
		Stalls:   s.stalls.Load(),
		Kinds:    make(map[string]int64, len(s.kinds)),
	}
	for i := range s.kinds {
		if n := s.kinds[i].Load(); n > 0 {
			snap.Kinds[core.EventKind(i).String()] = n
		}
	}

	elapsed := time.Since(s.start)
	snap.ElapsedMs = elapsed.Milliseconds()
	if secs := elapsed.Seconds(); secs > 0 {
		snap.EventsPerSec = float64(snap.Events) / secs
		snap.LinesPerSec = float64(snap.LinesOut) / secs
		snap.BytesPerSec = float64(snap.BytesOut) / secs
	}
	return snap
}
