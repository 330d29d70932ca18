package usecase

import "sync"

// ProcessStats aggregates pipeline outcomes across worker goroutines.
type ProcessStats struct {
	mu            sync.Mutex
	processed     int
	failed        int
	confidenceSum float64
}

func NewProcessStats() *ProcessStats {
	return &ProcessStats{}
}

func (s *ProcessStats) RecordSuccess(confidence float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed++
	s.confidenceSum += confidence
}

func (s *ProcessStats) RecordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed++
}

// StatsSnapshot is a point-in-time copy of the counters. AverageConfidence
// covers successful documents only.
type StatsSnapshot struct {
	Processed         int
	Failed            int
	AverageConfidence float64
}

func (s *ProcessStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := StatsSnapshot{Processed: s.processed, Failed: s.failed}
	if s.processed > 0 {
		snap.AverageConfidence = s.confidenceSum / float64(s.processed)
	}
	return snap
}
