package domain

import "sync"

// GlobalStats holds process-wide monotonic counters, updated at the end
// of every ingest and reset only on restart.
type GlobalStats struct {
	mu               sync.Mutex
	requestsTotal    uint64
	requestsFailed   uint64
	videosProcessed  uint64
	apiCalls         uint64
	apiQuotaUsed     uint64
	transcriptHits   uint64
	transcriptMisses uint64
}

func NewGlobalStats() *GlobalStats {
	return &GlobalStats{}
}

// RecordRequest folds one finished ingest into the counters.
func (s *GlobalStats) RecordRequest(failed bool, videos, apiCalls, quotaUsed, transcriptHits, transcriptMisses int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requestsTotal++
	if failed {
		s.requestsFailed++
	}
	s.videosProcessed += uint64(videos)
	s.apiCalls += uint64(apiCalls)
	s.apiQuotaUsed += uint64(quotaUsed)
	s.transcriptHits += uint64(transcriptHits)
	s.transcriptMisses += uint64(transcriptMisses)
}

// StatsSnapshot is the exported view of the counters.
type StatsSnapshot struct {
	RequestsTotal    uint64 `json:"requests_total"`
	RequestsFailed   uint64 `json:"requests_failed"`
	VideosProcessed  uint64 `json:"videos_processed"`
	APICalls         uint64 `json:"api_calls"`
	APIQuotaUsed     uint64 `json:"api_quota_used"`
	TranscriptHits   uint64 `json:"transcript_hits"`
	TranscriptMisses uint64 `json:"transcript_misses"`
}

func (s *GlobalStats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return StatsSnapshot{
		RequestsTotal:    s.requestsTotal,
		RequestsFailed:   s.requestsFailed,
		VideosProcessed:  s.videosProcessed,
		APICalls:         s.apiCalls,
		APIQuotaUsed:     s.apiQuotaUsed,
		TranscriptHits:   s.transcriptHits,
		TranscriptMisses: s.transcriptMisses,
	}
}
