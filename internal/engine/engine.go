// Package engine orchestrates one ingest: classify the input, resolve
// it to a video set, hydrate metadata and transcripts, and render the
// digest.
package engine

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/youtubingest/youtubingest-go/internal/config"
	"github.com/youtubingest/youtubingest-go/internal/digest"
	"github.com/youtubingest/youtubingest-go/internal/domain"
	"github.com/youtubingest/youtubingest-go/internal/textproc"
	"github.com/youtubingest/youtubingest-go/internal/transcript"
	"github.com/youtubingest/youtubingest-go/internal/util"
	"github.com/youtubingest/youtubingest-go/internal/youtube"
	"github.com/youtubingest/youtubingest-go/pkg/errors"
)

// apiClient is the slice of the Data API client the engine drives.
type apiClient interface {
	Counters() (calls, quota int)
	ResolveChannel(ctx context.Context, kind youtube.InputKind, ref string) (*youtube.ResolvedChannel, error)
	GetPlaylistMetadata(ctx context.Context, playlistID string) (string, error)
	ListPlaylistVideoIDs(ctx context.Context, playlistID string, start, end *time.Time, maxItems int) ([]string, error)
	SearchVideoIDs(ctx context.Context, query youtube.SearchQuery, start, end *time.Time, maxItems int) ([]string, error)
	GetVideos(ctx context.Context, ids []string) ([]*youtube.VideoInfo, error)
}

// transcriptSource fetches a formatted transcript, (nil, nil) when the
// video has none.
type transcriptSource interface {
	Fetch(ctx context.Context, video *transcript.VideoRef, interval int) (*domain.Transcript, error)
}

type tokenCounter interface {
	Count(text string) int
}

// Engine runs the ingest pipeline. Concurrent identical requests share
// one in-flight execution.
type Engine struct {
	ytCfg       config.YouTubeConfig
	cfg         config.EngineConfig
	api         apiClient
	transcripts transcriptSource
	tokens      tokenCounter
	stats       *domain.GlobalStats
	flight      singleflight.Group
	logger      *zap.Logger
}

func New(ytCfg config.YouTubeConfig, cfg config.EngineConfig, api apiClient, transcripts transcriptSource, tokens tokenCounter, stats *domain.GlobalStats, logger *zap.Logger) *Engine {
	return &Engine{
		ytCfg:       ytCfg,
		cfg:         cfg,
		api:         api,
		transcripts: transcripts,
		tokens:      tokens,
		stats:       stats,
		logger:      logger,
	}
}

// Ingest validates the request and runs the full pipeline under the
// configured deadline.
func (e *Engine) Ingest(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResult, error) {
	if err := req.Validate(); err != nil {
		e.stats.RecordRequest(true, 0, 0, 0, 0, 0)
		return nil, err
	}

	v, err, shared := e.flight.Do(req.Fingerprint(), func() (any, error) {
		return e.ingest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		e.logger.Debug("request coalesced with identical in-flight request",
			zap.String("input", util.TruncateString(req.URLOrQuery, 120)))
	}
	return v.(*domain.IngestResult), nil
}

func (e *Engine) ingest(ctx context.Context, req *domain.IngestRequest) (*domain.IngestResult, error) {
	started := time.Now()
	if e.cfg.RequestDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RequestDeadline)
		defer cancel()
	}

	callsBefore, quotaBefore := e.api.Counters()

	result, hits, misses, err := e.run(ctx, req)

	callsAfter, quotaAfter := e.api.Counters()
	calls := callsAfter - callsBefore
	quota := quotaAfter - quotaBefore

	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = errors.NewTimeout("request deadline exceeded").WithCause(err)
		}
		e.stats.RecordRequest(true, 0, calls, quota, hits, misses)
		return nil, err
	}

	result.ProcessingTimeMs = time.Since(started).Milliseconds()
	result.APICallCount = calls
	result.APIQuotaUsed = quota

	e.stats.RecordRequest(false, result.VideoCount, calls, quota, hits, misses)
	e.logger.Info("ingest complete",
		zap.String("source", result.SourceName),
		zap.Int("videos", result.VideoCount),
		zap.Int("tokens", result.TokenCount),
		zap.Int("api_calls", calls),
		zap.Int("quota", quota),
		zap.Int64("elapsed_ms", result.ProcessingTimeMs))
	return result, nil
}

func (e *Engine) run(ctx context.Context, req *domain.IngestRequest) (result *domain.IngestResult, transcriptHits, transcriptMisses int, err error) {
	classified, err := youtube.Classify(req.URLOrQuery)
	if err != nil {
		return nil, 0, 0, err
	}

	source, ids, err := e.resolve(ctx, classified, req)
	if err != nil {
		return nil, 0, 0, err
	}
	if len(ids) > e.ytCfg.MaxVideosPerRequest {
		ids = ids[:e.ytCfg.MaxVideosPerRequest]
	}

	infos, err := e.api.GetVideos(ctx, ids)
	if err != nil {
		return nil, 0, 0, err
	}
	if source.Kind == domain.SourceVideo {
		if len(infos) == 0 {
			return nil, 0, 0, errors.NewResourceNotFound("video not found: " + source.CanonicalID)
		}
		source.DisplayName = textproc.CleanTitle(infos[0].Title)
	}

	records := e.buildRecords(infos, source, req)

	if req.IncludeTranscript {
		transcriptHits, transcriptMisses = e.attachTranscripts(ctx, infos, records, req.TranscriptInterval)
		if ctx.Err() != nil {
			return nil, transcriptHits, transcriptMisses, ctx.Err()
		}
	}

	orderRecords(records, source.Kind)

	text := digest.Build(source.DisplayName, records, digest.Options{
		IncludeDescription: req.IncludeDescription,
		IncludeTranscript:  req.IncludeTranscript,
	})

	return &domain.IngestResult{
		SourceName:    source.DisplayName,
		VideoCount:    len(records),
		DigestText:    text,
		TokenCount:    e.tokens.Count(text),
		Videos:        records,
		HighQuotaCost: source.HighQuotaCost,
	}, transcriptHits, transcriptMisses, nil
}

// resolve turns the classified input into a display name plus the
// candidate video IDs, in origin order.
func (e *Engine) resolve(ctx context.Context, in youtube.Classification, req *domain.IngestRequest) (*domain.ResolvedSource, []string, error) {
	switch in.Kind {
	case youtube.InputVideo:
		// The display name is filled in from metadata later.
		return &domain.ResolvedSource{Kind: domain.SourceVideo, CanonicalID: in.Value}, []string{in.Value}, nil

	case youtube.InputPlaylist:
		title, err := e.api.GetPlaylistMetadata(ctx, in.Value)
		if err != nil {
			return nil, nil, err
		}
		ids, err := e.api.ListPlaylistVideoIDs(ctx, in.Value, req.StartDate, req.EndDate, e.ytCfg.MaxVideosPerRequest)
		if err != nil {
			return nil, nil, err
		}
		return &domain.ResolvedSource{
			Kind:        domain.SourcePlaylist,
			CanonicalID: in.Value,
			DisplayName: textproc.CleanTitle(title),
		}, ids, nil

	case youtube.InputChannelID, youtube.InputHandle, youtube.InputCustom, youtube.InputUser:
		ch, err := e.api.ResolveChannel(ctx, in.Kind, in.Value)
		if err != nil {
			return nil, nil, err
		}
		ids, err := e.api.ListPlaylistVideoIDs(ctx, ch.UploadsPlaylistID, req.StartDate, req.EndDate, e.ytCfg.MaxVideosPerRequest)
		if err != nil {
			return nil, nil, err
		}
		return &domain.ResolvedSource{
			Kind:          domain.SourceChannel,
			CanonicalID:   ch.ID,
			DisplayName:   textproc.CleanTitle(ch.Title),
			HighQuotaCost: ch.ViaSearch,
		}, ids, nil

	case youtube.InputSearch:
		query := youtube.ParseSearchQuery(in.Value)
		limit := e.ytCfg.MaxVideosPerRequest
		if searchCap := int(e.ytCfg.MaxSearchResults); searchCap > 0 && searchCap < limit {
			limit = searchCap
		}
		ids, err := e.api.SearchVideoIDs(ctx, query, req.StartDate, req.EndDate, limit)
		if err != nil {
			return nil, nil, err
		}
		return &domain.ResolvedSource{
			Kind:          domain.SourceSearch,
			CanonicalID:   in.Value,
			DisplayName:   query.DisplayName(),
			HighQuotaCost: true,
		}, ids, nil
	}
	return nil, nil, errors.NewInvalidInput("unrecognized input: " + in.Value)
}

// buildRecords filters the raw metadata and normalizes it into records.
// Live and upcoming broadcasts are dropped, as are videos shorter than
// the configured minimum or outside the requested date window.
func (e *Engine) buildRecords(infos []*youtube.VideoInfo, source *domain.ResolvedSource, req *domain.IngestRequest) []*domain.VideoRecord {
	minSeconds := int(e.ytCfg.MinDuration / time.Second)
	records := make([]*domain.VideoRecord, 0, len(infos))

	for i, info := range infos {
		if info.LiveBroadcastContent == "live" || info.LiveBroadcastContent == "upcoming" {
			continue
		}
		if minSeconds > 0 && info.DurationSeconds < minSeconds {
			continue
		}
		if source.Kind != domain.SourceVideo && !inWindow(info.PublishedAt, req.StartDate, req.EndDate) {
			continue
		}

		rec := &domain.VideoRecord{
			ID:             info.ID,
			Title:          textproc.CleanTitle(info.Title),
			DescriptionRaw: info.Description,
			ChannelID:      info.ChannelID,
			ChannelTitle:   info.ChannelTitle,
			PublishedAt:    info.PublishedAt,
			Duration:       info.DurationSeconds,
			Tags:           info.Tags,
			OriginIndex:    i,
		}
		if req.IncludeDescription {
			rec.DescriptionClean = textproc.CleanDescription(info.Description)
		}
		records = append(records, rec)
	}
	return records
}

// attachTranscripts fetches transcripts for all records with bounded
// parallelism. Failures degrade to records without transcripts.
func (e *Engine) attachTranscripts(ctx context.Context, infos []*youtube.VideoInfo, records []*domain.VideoRecord, interval int) (hits, misses int) {
	infoByID := make(map[string]*youtube.VideoInfo, len(infos))
	for _, info := range infos {
		infoByID[info.ID] = info
	}

	concurrency := e.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(concurrency)
	for _, rec := range records {
		rec := rec
		p.Go(func() {
			if ctx.Err() != nil {
				return
			}
			info := infoByID[rec.ID]
			ref := transcript.NewVideoRef(rec.ID, info.DefaultLanguage, info.DefaultAudioLanguage)
			tr, err := e.transcripts.Fetch(ctx, ref, interval)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				misses++
				e.logger.Warn("transcript fetch failed",
					zap.String("video_id", rec.ID),
					zap.Error(err))
			case tr == nil:
				misses++
			default:
				rec.Transcript = tr
				hits++
			}
		})
	}
	p.Wait()
	return hits, misses
}

// orderRecords sorts for digest rendering: playlists keep their origin
// order, everything multi-video else is newest first.
func orderRecords(records []*domain.VideoRecord, kind domain.SourceKind) {
	switch kind {
	case domain.SourcePlaylist:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].OriginIndex < records[j].OriginIndex
		})
	case domain.SourceChannel, domain.SourceSearch:
		sort.SliceStable(records, func(i, j int) bool {
			return records[i].PublishedAt.After(records[j].PublishedAt)
		})
	}
}

func inWindow(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(util.StartOfDayUTC(*start)) {
		return false
	}
	if end != nil && t.After(util.EndOfDayUTC(*end)) {
		return false
	}
	return true
}
