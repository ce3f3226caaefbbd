// Package transcript fetches, selects, and formats caption tracks for
// videos. It talks to the public watch page and timed-text endpoints,
// which have their own failure modes independent of the Data API.
package transcript

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/youtubingest/youtubingest-go/internal/cache"
	"github.com/youtubingest/youtubingest-go/internal/config"
	"github.com/youtubingest/youtubingest-go/internal/domain"
	"github.com/youtubingest/youtubingest-go/internal/textproc"
)

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Negative cache reasons.
const (
	reasonNoTranscript = "no_transcript"
	reasonDisabled     = "disabled"
)

const negativeTTL = 6 * time.Hour

// Source fetches transcripts with bounded concurrency, per-host
// pacing, in-flight deduplication, and positive/negative caching.
type Source struct {
	cfg        config.TranscriptConfig
	httpClient *http.Client
	watchBase  string
	limiter    *rate.Limiter
	sem        chan struct{}
	flight     singleflight.Group
	positive   *cache.LRU
	negative   *cache.LRU
	logger     *zap.Logger
}

// NewSource builds a transcript source. The positive and negative
// caches are provided by the container so they can be registered with
// the cache registry.
func NewSource(cfg config.TranscriptConfig, positive, negative *cache.LRU, logger *zap.Logger) *Source {
	minDelay := cfg.MinDelay
	if minDelay <= 0 {
		minDelay = time.Millisecond
	}
	concurrency := cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	if positive == nil {
		positive = cache.NewLRU("transcripts", 256, 0)
	}
	if negative == nil {
		negative = cache.NewLRU("transcript_errors", 256, negativeTTL)
	}
	return &Source{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		watchBase:  "https://www.youtube.com",
		limiter:    rate.NewLimiter(rate.Every(minDelay), 1),
		sem:        make(chan struct{}, concurrency),
		positive:   positive,
		negative:   negative,
		logger:     logger,
	}
}

// Fetch returns the formatted transcript for a video, or (nil, nil)
// when the video has no usable transcript. Only transport-level
// failures return an error.
func (s *Source) Fetch(ctx context.Context, video *VideoRef, interval int) (*domain.Transcript, error) {
	prefs := s.preferredLanguages(video)
	key := fmt.Sprintf("%s|%d|%s", video.ID, interval, strings.Join(prefs, ","))

	if v, ok := s.positive.Get(key); ok {
		return v.(*domain.Transcript), nil
	}
	if _, ok := s.negative.Get(video.ID); ok {
		return nil, nil
	}

	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.fetch(ctx, video, interval, prefs, key)
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*domain.Transcript), nil
}

// VideoRef is the slice of video metadata the source needs. It
// mirrors the API client's record without importing it.
type VideoRef struct {
	ID                   string
	DefaultLanguage      string
	DefaultAudioLanguage string
}

// NewVideoRef builds the source's input from raw metadata fields.
func NewVideoRef(id, defaultLanguage, defaultAudioLanguage string) *VideoRef {
	return &VideoRef{ID: id, DefaultLanguage: defaultLanguage, DefaultAudioLanguage: defaultAudioLanguage}
}

func (s *Source) fetch(ctx context.Context, video *VideoRef, interval int, prefs []string, key string) (any, error) {
	select {
	case s.sem <- struct{}{}:
		defer func() { <-s.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	tracks, err := s.listTracksWithRetry(ctx, video.ID)
	if err != nil {
		if _, ok := err.(*unavailableError); ok {
			s.negative.PutTTL(video.ID, reasonDisabled, negativeTTL)
			s.logger.Debug("video unavailable for transcripts",
				zap.String("video_id", video.ID),
				zap.Error(err))
			return nil, nil
		}
		return nil, err
	}
	if len(tracks) == 0 {
		s.negative.PutTTL(video.ID, reasonNoTranscript, negativeTTL)
		return nil, nil
	}

	track, ok := selectTrack(tracks, prefs)
	if !ok {
		s.negative.PutTTL(video.ID, reasonNoTranscript, negativeTTL)
		return nil, nil
	}

	cues, err := s.fetchCuesWithRetry(ctx, track)
	if err != nil {
		return nil, err
	}
	if len(cues) == 0 {
		s.negative.PutTTL(video.ID, reasonNoTranscript, negativeTTL)
		return nil, nil
	}

	result := &domain.Transcript{
		Language:      track.LanguageCode,
		FormattedText: formatCues(cues, interval),
	}
	s.positive.Put(key, result)
	return result, nil
}

// listTracksWithRetry retries once on transport failure; definitive
// outcomes (unavailable video) pass through.
func (s *Source) listTracksWithRetry(ctx context.Context, videoID string) ([]captionTrack, error) {
	tracks, err := s.fetchTrackList(ctx, videoID)
	if err == nil {
		return tracks, nil
	}
	if _, ok := err.(*unavailableError); ok {
		return nil, err
	}
	if ctx.Err() != nil {
		return nil, err
	}

	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.fetchTrackList(ctx, videoID)
}

func (s *Source) fetchCuesWithRetry(ctx context.Context, track captionTrack) ([]cue, error) {
	cues, err := s.fetchCues(ctx, track)
	if err == nil || ctx.Err() != nil {
		return cues, err
	}
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.fetchCues(ctx, track)
}

// preferredLanguages builds the ordered preference list for a video:
// its own declared languages first, then their base languages, then
// the configured list, then English.
func (s *Source) preferredLanguages(video *VideoRef) []string {
	var prefs []string
	add := func(lang string) {
		lang = strings.TrimSpace(lang)
		if lang == "" {
			return
		}
		for _, p := range prefs {
			if p == lang {
				return
			}
		}
		prefs = append(prefs, lang)
	}

	add(video.DefaultAudioLanguage)
	add(video.DefaultLanguage)
	add(baseLang(video.DefaultAudioLanguage))
	add(baseLang(video.DefaultLanguage))
	for _, lang := range s.cfg.PreferredLanguages {
		add(lang)
	}
	add("en")
	return prefs
}

func baseLang(lang string) string {
	if i := strings.IndexByte(lang, '-'); i > 0 {
		return lang[:i]
	}
	return ""
}

// selectTrack picks the best track for the preference order. Exact
// code matches beat base-language matches; manual tracks beat
// auto-generated ones at each rung; ties go to upstream list order.
func selectTrack(tracks []captionTrack, prefs []string) (captionTrack, bool) {
	for _, pref := range prefs {
		for _, manual := range []bool{true, false} {
			for _, t := range tracks {
				if t.generated() == manual {
					continue
				}
				if strings.EqualFold(t.LanguageCode, pref) {
					return t, true
				}
			}
		}
	}
	for _, pref := range prefs {
		for _, manual := range []bool{true, false} {
			for _, t := range tracks {
				if t.generated() == manual {
					continue
				}
				if strings.EqualFold(baseLangOf(t.LanguageCode), baseLangOf(pref)) {
					return t, true
				}
			}
		}
	}
	// Nothing in the preferred families: any manual track, English
	// first, then any generated track.
	if t, ok := anyTrack(tracks, false); ok {
		return t, true
	}
	return anyTrack(tracks, true)
}

func baseLangOf(lang string) string {
	if i := strings.IndexByte(lang, '-'); i > 0 {
		return lang[:i]
	}
	return lang
}

func anyTrack(tracks []captionTrack, generated bool) (captionTrack, bool) {
	var candidates []captionTrack
	for _, t := range tracks {
		if t.generated() == generated {
			candidates = append(candidates, t)
		}
	}
	if len(candidates) == 0 {
		return captionTrack{}, false
	}
	for _, t := range candidates {
		if baseLangOf(t.LanguageCode) == "en" {
			return t, true
		}
	}
	return candidates[0], true
}

// formatCues renders cues as a single collapsed line (interval 0) or
// one line per non-empty time bucket prefixed with the bucket boundary.
func formatCues(cues []cue, interval int) string {
	sort.SliceStable(cues, func(i, j int) bool { return cues[i].Start < cues[j].Start })

	if interval <= 0 {
		parts := make([]string, 0, len(cues))
		for _, c := range cues {
			parts = append(parts, c.Text)
		}
		return textproc.CollapseSpaces(strings.Join(parts, " "))
	}

	type bucket struct {
		boundary int
		texts    []string
		seen     map[string]bool
	}
	var buckets []*bucket
	byBoundary := make(map[int]*bucket)

	for _, c := range cues {
		boundary := (int(c.Start) / interval) * interval
		b, ok := byBoundary[boundary]
		if !ok {
			b = &bucket{boundary: boundary, seen: make(map[string]bool)}
			byBoundary[boundary] = b
			buckets = append(buckets, b)
		}
		text := textproc.CollapseSpaces(c.Text)
		if text == "" || b.seen[text] {
			continue
		}
		b.seen[text] = true
		b.texts = append(b.texts, text)
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].boundary < buckets[j].boundary })

	lines := make([]string, 0, len(buckets))
	for _, b := range buckets {
		if len(b.texts) == 0 {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", textproc.FormatTimestamp(b.boundary), strings.Join(b.texts, " ")))
	}
	return strings.Join(lines, "\n")
}
