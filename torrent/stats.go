package torrent

import (
	"sync"
	"time"
)

// PeerStats is a snapshot of swarm health at the moment retrieval succeeded.
// Counts are not monotonic; the swarm may never report them before timeout.
type PeerStats struct {
	Seeders     int   `json:"seeders"`
	Leechers    int   `json:"leechers"`
	TotalWanted int64 `json:"totalWanted"`
}

// GlobalStats aggregates conversion outcomes across the run.
type GlobalStats struct {
	Converted     int     `json:"converted"`
	Failed        int     `json:"failed"`
	Skipped       int     `json:"skipped"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Stats tracks conversion counters shared between the pipeline and the HTTP
// API.
type Stats struct {
	mut       sync.Mutex
	converted int
	failed    int
	skipped   int

	gTime time.Time
}

func NewStats() *Stats {
	return &Stats{gTime: time.Now()}
}

func (s *Stats) AddConverted() {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.converted++
}

func (s *Stats) AddFailed() {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.failed++
}

func (s *Stats) AddSkipped() {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.skipped++
}

func (s *Stats) Global() GlobalStats {
	s.mut.Lock()
	defer s.mut.Unlock()
	return GlobalStats{
		Converted:     s.converted,
		Failed:        s.failed,
		Skipped:       s.skipped,
		UptimeSeconds: time.Since(s.gTime).Seconds(),
	}
}
