package websocket

import (
	"sync"
	"time"
)

// PushStats counts what the push pipeline has done since start: pages
// joining and leaving, snapshot frames delivered, and the failure modes
// worth alerting on. It backs the /api/stats payload; the OTel
// instruments cover the same ground for scraping.
type PushStats struct {
	mu sync.Mutex

	pagesJoined  int64
	pagesActive  int64
	pagesPeak    int64
	pagesDropped int64

	pushesDelivered int64
	pushesFailed    int64
	pushBytes       int64

	framesReceived int64
	frameBytes     int64

	queuePeak int64

	failures map[string]int64

	since        time.Time
	sessionCount int64
	sessionTotal time.Duration
}

// NewPushStats creates an empty stats set.
func NewPushStats() *PushStats {
	return &PushStats{
		failures: make(map[string]int64),
		since:    time.Now(),
	}
}

// PageJoined records a page subscribing to pushes.
func (s *PushStats) PageJoined() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pagesJoined++
	s.pagesActive++
	if s.pagesActive > s.pagesPeak {
		s.pagesPeak = s.pagesActive
	}
}

// PageLeft records a page unsubscribing after a session of the given
// length.
func (s *PushStats) PageLeft(session time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pagesActive--
	s.sessionCount++
	s.sessionTotal += session
}

// PageDropped records a page evicted for not draining its send buffer.
func (s *PushStats) PageDropped() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pagesDropped++
}

// PushDelivered records one frame written to a page.
func (s *PushStats) PushDelivered(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushesDelivered++
	s.pushBytes += bytes
}

// PushFailed records one frame that could not be written.
func (s *PushStats) PushFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pushesFailed++
}

// FrameReceived records one frame read from a page. Pages only send
// heartbeats, so volume here approximates heartbeat traffic.
func (s *PushStats) FrameReceived(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.framesReceived++
	s.frameBytes += bytes
}

// ObserveQueueDepth tracks the high-water mark of the broadcast queue.
func (s *PushStats) ObserveQueueDepth(depth int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if depth > s.queuePeak {
		s.queuePeak = depth
	}
}

// RecordFailure counts a failure by reason, e.g. "upgrade_failed".
func (s *PushStats) RecordFailure(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[reason]++
}

// StatsSnapshot is the JSON shape of the push counters.
type StatsSnapshot struct {
	PagesJoined  int64 `json:"pages_joined"`
	PagesActive  int64 `json:"pages_active"`
	PagesPeak    int64 `json:"pages_peak"`
	PagesDropped int64 `json:"pages_dropped"`

	PushesDelivered int64 `json:"pushes_delivered"`
	PushesFailed    int64 `json:"pushes_failed"`
	PushBytes       int64 `json:"push_bytes"`

	FramesReceived int64 `json:"frames_received"`
	FrameBytes     int64 `json:"frame_bytes"`

	QueuePeak         int64   `json:"queue_peak"`
	AvgSessionSeconds float64 `json:"avg_session_seconds"`
	UptimeSeconds     float64 `json:"uptime_seconds"`

	FailuresByReason map[string]int64 `json:"failures_by_reason,omitempty"`
}

// Snapshot returns a copy of the current counters.
func (s *PushStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := StatsSnapshot{
		PagesJoined:     s.pagesJoined,
		PagesActive:     s.pagesActive,
		PagesPeak:       s.pagesPeak,
		PagesDropped:    s.pagesDropped,
		PushesDelivered: s.pushesDelivered,
		PushesFailed:    s.pushesFailed,
		PushBytes:       s.pushBytes,
		FramesReceived:  s.framesReceived,
		FrameBytes:      s.frameBytes,
		QueuePeak:       s.queuePeak,
		UptimeSeconds:   time.Since(s.since).Seconds(),
	}

	if s.sessionCount > 0 {
		snap.AvgSessionSeconds = (s.sessionTotal / time.Duration(s.sessionCount)).Seconds()
	}

	if len(s.failures) > 0 {
		snap.FailuresByReason = make(map[string]int64, len(s.failures))
		for reason, n := range s.failures {
			snap.FailuresByReason[reason] = n
		}
	}

	return snap
}

// Reset zeroes every counter and restarts the uptime clock.
func (s *PushStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pagesJoined = 0
	s.pagesActive = 0
	s.pagesPeak = 0
	s.pagesDropped = 0
	s.pushesDelivered = 0
	s.pushesFailed = 0
	s.pushBytes = 0
	s.framesReceived = 0
	s.frameBytes = 0
	s.queuePeak = 0
	s.failures = make(map[string]int64)
	s.since = time.Now()
	s.sessionCount = 0
	s.sessionTotal = 0
}

var globalStats = NewPushStats()

// Stats returns the process-wide push counters.
func Stats() *PushStats {
	return globalStats
}
