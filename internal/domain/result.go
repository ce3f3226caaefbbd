package domain

// IngestResult is the product of one ingest operation.
type IngestResult struct {
	SourceName       string         `json:"source_name"`
	VideoCount       int            `json:"video_count"`
	DigestText       string         `json:"digest_text"`
	TokenCount       int            `json:"token_count"`
	Videos           []*VideoRecord `json:"videos"`
	ProcessingTimeMs int64          `json:"processing_time_ms"`
	APICallCount     int            `json:"api_call_count"`
	APIQuotaUsed     int            `json:"api_quota_used"`
	HighQuotaCost    bool           `json:"high_quota_cost"`
}

// ErrorResponse is the wire shape for taxonomy errors.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}
