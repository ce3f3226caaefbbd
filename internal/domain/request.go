// Package domain holds the value types exchanged between the ingestion
// pipeline's components.
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/youtubingest/youtubingest-go/pkg/errors"
)

// Allowed transcript grouping intervals in seconds. Zero disables
// timestamps and grouping.
var AllowedIntervals = map[int]bool{0: true, 10: true, 20: true, 30: true, 60: true}

const (
	MaxInputLength  = 2000
	DefaultInterval = 10
)

// IngestRequest is the validated input to one ingest operation.
type IngestRequest struct {
	URLOrQuery         string     `json:"url"`
	IncludeTranscript  bool       `json:"include_transcript"`
	IncludeDescription bool       `json:"include_description"`
	TranscriptInterval int        `json:"transcript_interval"`
	StartDate          *time.Time `json:"start_date,omitempty"`
	EndDate            *time.Time `json:"end_date,omitempty"`
}

// Validate enforces the input contract: non-empty, bounded length,
// whitelisted interval, consistent date range. Dates are normalized to
// UTC day granularity.
func (r *IngestRequest) Validate() error {
	r.URLOrQuery = strings.TrimSpace(r.URLOrQuery)
	if r.URLOrQuery == "" {
		return errors.NewInvalidInput("url or query must not be empty")
	}
	if len(r.URLOrQuery) > MaxInputLength {
		return errors.NewInvalidInput(fmt.Sprintf("input exceeds %d characters", MaxInputLength))
	}
	if !AllowedIntervals[r.TranscriptInterval] {
		return errors.NewInvalidInput(fmt.Sprintf("transcript_interval %d not in {0,10,20,30,60}", r.TranscriptInterval))
	}
	if r.StartDate != nil {
		d := r.StartDate.UTC()
		r.StartDate = &d
	}
	if r.EndDate != nil {
		d := r.EndDate.UTC()
		r.EndDate = &d
	}
	if r.StartDate != nil && r.EndDate != nil && r.StartDate.After(*r.EndDate) {
		return errors.NewInvalidInput("start_date is after end_date")
	}
	return nil
}

// Fingerprint identifies semantically identical requests so concurrent
// duplicates can share one in-flight computation.
func (r *IngestRequest) Fingerprint() string {
	var b strings.Builder
	b.WriteString(r.URLOrQuery)
	fmt.Fprintf(&b, "|t=%v|d=%v|i=%d", r.IncludeTranscript, r.IncludeDescription, r.TranscriptInterval)
	if r.StartDate != nil {
		b.WriteString("|s=" + r.StartDate.Format("2006-01-02"))
	}
	if r.EndDate != nil {
		b.WriteString("|e=" + r.EndDate.Format("2006-01-02"))
	}
	return b.String()
}

// SourceKind classifies what the input named.
type SourceKind string

const (
	SourceVideo    SourceKind = "video"
	SourcePlaylist SourceKind = "playlist"
	SourceChannel  SourceKind = "channel"
	SourceSearch   SourceKind = "search"
)

// ResolvedSource is the outcome of classifying and resolving the input.
type ResolvedSource struct {
	Kind          SourceKind
	CanonicalID   string
	DisplayName   string
	HighQuotaCost bool
}
