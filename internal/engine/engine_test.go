package engine

import (
	"context"
	stderrors "errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/youtubingest/youtubingest-go/internal/config"
	"github.com/youtubingest/youtubingest-go/internal/domain"
	"github.com/youtubingest/youtubingest-go/internal/transcript"
	"github.com/youtubingest/youtubingest-go/internal/youtube"
	"github.com/youtubingest/youtubingest-go/pkg/errors"
)

type fakeAPI struct {
	mu             sync.Mutex
	calls          int
	quota          int
	extraQuota     int
	videos         map[string]*youtube.VideoInfo
	playlistTitle  string
	playlistIDs    []string
	channel        *youtube.ResolvedChannel
	searchIDs      []string
	getVideosCalls int
	blockGetVideos chan struct{}
	err            error
}

func (f *fakeAPI) record(cost int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.quota += cost
}

func (f *fakeAPI) Counters() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, f.quota
}

func (f *fakeAPI) ResolveChannel(ctx context.Context, kind youtube.InputKind, ref string) (*youtube.ResolvedChannel, error) {
	f.record(1)
	if f.channel == nil {
		return nil, errors.NewResourceNotFound("channel not found: " + ref)
	}
	return f.channel, nil
}

func (f *fakeAPI) GetPlaylistMetadata(ctx context.Context, playlistID string) (string, error) {
	f.record(1)
	if f.playlistTitle == "" {
		return "", errors.NewResourceNotFound("playlist not found: " + playlistID)
	}
	return f.playlistTitle, nil
}

func (f *fakeAPI) ListPlaylistVideoIDs(ctx context.Context, playlistID string, start, end *time.Time, maxItems int) ([]string, error) {
	f.record(1)
	ids := f.playlistIDs
	if len(ids) > maxItems {
		ids = ids[:maxItems]
	}
	return ids, nil
}

func (f *fakeAPI) SearchVideoIDs(ctx context.Context, query youtube.SearchQuery, start, end *time.Time, maxItems int) ([]string, error) {
	f.record(100)
	return f.searchIDs, nil
}

func (f *fakeAPI) GetVideos(ctx context.Context, ids []string) ([]*youtube.VideoInfo, error) {
	f.mu.Lock()
	f.getVideosCalls++
	blocker := f.blockGetVideos
	f.mu.Unlock()
	f.record(1 + f.extraQuota)

	if blocker != nil {
		select {
		case <-blocker:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]*youtube.VideoInfo, 0, len(ids))
	for _, id := range ids {
		if info, ok := f.videos[id]; ok {
			out = append(out, info)
		}
	}
	return out, nil
}

type fakeTranscripts struct {
	mu      sync.Mutex
	byID    map[string]*domain.Transcript
	fetches int
}

func (f *fakeTranscripts) Fetch(ctx context.Context, video *transcript.VideoRef, interval int) (*domain.Transcript, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	return f.byID[video.ID], nil
}

type fakeTokens struct{}

func (fakeTokens) Count(text string) int { return (len(text) + 3) / 4 }

func testVideo(id, title string, published time.Time, seconds int) *youtube.VideoInfo {
	return &youtube.VideoInfo{
		ID:              id,
		Title:           title,
		ChannelID:       "UCchan",
		ChannelTitle:    "Test Channel",
		PublishedAt:     published,
		DurationSeconds: seconds,
		Tags:            []string{"go"},
	}
}

func newTestEngine(api *fakeAPI, tr transcriptSource) *Engine {
	ytCfg := config.YouTubeConfig{
		MaxVideosPerRequest: 200,
		MaxSearchResults:    50,
	}
	cfg := config.EngineConfig{Concurrency: 4, RequestDeadline: 30 * time.Second}
	if tr == nil {
		tr = &fakeTranscripts{}
	}
	return New(ytCfg, cfg, api, tr, fakeTokens{}, domain.NewGlobalStats(), zap.NewNop())
}

func TestIngestSingleVideo(t *testing.T) {
	published := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	api := &fakeAPI{videos: map[string]*youtube.VideoInfo{
		"dQw4w9WgXcQ": testVideo("dQw4w9WgXcQ", "  A   Great Video  ", published, 212),
	}}
	e := newTestEngine(api, nil)

	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "https://youtu.be/dQw4w9WgXcQ",
		TranscriptInterval: domain.DefaultInterval,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.SourceName != "A Great Video" {
		t.Errorf("source name = %q", res.SourceName)
	}
	if res.VideoCount != 1 || len(res.Videos) != 1 {
		t.Fatalf("video count = %d", res.VideoCount)
	}
	if !strings.HasPrefix(res.DigestText, "# Source: A Great Video\n# Videos: 1\n") {
		t.Errorf("digest header wrong:\n%s", res.DigestText)
	}
	if res.TokenCount == 0 {
		t.Error("token count should be positive")
	}
	if res.APICallCount == 0 || res.APIQuotaUsed == 0 {
		t.Errorf("counters not attributed: calls=%d quota=%d", res.APICallCount, res.APIQuotaUsed)
	}
	if res.HighQuotaCost {
		t.Error("single video lookup should not be high quota cost")
	}
}

func TestIngestVideoNotFound(t *testing.T) {
	api := &fakeAPI{videos: map[string]*youtube.VideoInfo{}}
	e := newTestEngine(api, nil)

	_, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "https://youtu.be/dQw4w9WgXcQ",
		TranscriptInterval: 0,
	})
	if errors.CodeOf(err) != errors.CodeResourceNotFound {
		t.Fatalf("want RESOURCE_NOT_FOUND, got %v", err)
	}

	snap := e.stats.Snapshot()
	if snap.RequestsTotal != 1 || snap.RequestsFailed != 1 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestIngestPlaylistKeepsOriginOrder(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		playlistTitle: "My Course",
		playlistIDs:   []string{"vid-one-aaa", "vid-two-bbb", "vid-thr-ccc"},
		videos: map[string]*youtube.VideoInfo{
			// Newest first upstream, playlist order must still win.
			"vid-one-aaa": testVideo("vid-one-aaa", "Part 1", base.AddDate(0, 2, 0), 60),
			"vid-two-bbb": testVideo("vid-two-bbb", "Part 2", base.AddDate(0, 1, 0), 60),
			"vid-thr-ccc": testVideo("vid-thr-ccc", "Part 3", base, 60),
		},
	}
	e := newTestEngine(api, nil)

	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "https://www.youtube.com/playlist?list=PLabc123_-xyz",
		TranscriptInterval: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.SourceName != "My Course" {
		t.Errorf("source name = %q", res.SourceName)
	}
	got := []string{res.Videos[0].ID, res.Videos[1].ID, res.Videos[2].ID}
	want := []string{"vid-one-aaa", "vid-two-bbb", "vid-thr-ccc"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestIngestChannelSortsNewestFirst(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		channel:     &youtube.ResolvedChannel{ID: "UCchan", Title: "Test Channel", UploadsPlaylistID: "UUchan"},
		playlistIDs: []string{"old-video-1", "new-video-2"},
		videos: map[string]*youtube.VideoInfo{
			"old-video-1": testVideo("old-video-1", "Old", base, 60),
			"new-video-2": testVideo("new-video-2", "New", base.AddDate(0, 6, 0), 60),
		},
	}
	e := newTestEngine(api, nil)

	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "@NeuralNine",
		TranscriptInterval: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Videos[0].ID != "new-video-2" {
		t.Errorf("first video = %s, want newest", res.Videos[0].ID)
	}
}

func TestIngestSearchIsHighQuotaCost(t *testing.T) {
	api := &fakeAPI{
		searchIDs: []string{"result-0001"},
		videos: map[string]*youtube.VideoInfo{
			"result-0001": testVideo("result-0001", "Found", time.Now().UTC(), 60),
		},
	}
	e := newTestEngine(api, nil)

	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "golang concurrency after:2024-01-01",
		TranscriptInterval: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.HighQuotaCost {
		t.Error("search should be flagged high quota cost")
	}
	if res.SourceName != "golang concurrency (1 filters)" {
		t.Errorf("source name = %q", res.SourceName)
	}
}

func TestIngestFiltersLiveAndShortVideos(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	live := testVideo("live-vid-01", "Live Now", base, 0)
	live.LiveBroadcastContent = "live"
	short := testVideo("short-vid-2", "Tiny", base, 10)
	keep := testVideo("keep-vid-03", "Keeper", base, 120)

	api := &fakeAPI{
		playlistTitle: "Mixed",
		playlistIDs:   []string{"live-vid-01", "short-vid-2", "keep-vid-03"},
		videos: map[string]*youtube.VideoInfo{
			"live-vid-01": live, "short-vid-2": short, "keep-vid-03": keep,
		},
	}
	e := newTestEngine(api, nil)
	e.ytCfg.MinDuration = 30 * time.Second

	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "https://www.youtube.com/playlist?list=PLabc123_-xyz",
		TranscriptInterval: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.VideoCount != 1 || res.Videos[0].ID != "keep-vid-03" {
		t.Fatalf("got %d videos: %+v", res.VideoCount, res.Videos)
	}
}

func TestIngestDateWindowFiltersChannelVideos(t *testing.T) {
	api := &fakeAPI{
		channel:     &youtube.ResolvedChannel{ID: "UCchan", Title: "Test Channel", UploadsPlaylistID: "UUchan"},
		playlistIDs: []string{"in-range-01", "too-old-002"},
		videos: map[string]*youtube.VideoInfo{
			"in-range-01": testVideo("in-range-01", "In", time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC), 60),
			"too-old-002": testVideo("too-old-002", "Out", time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC), 60),
		},
	}
	e := newTestEngine(api, nil)

	start := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)
	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "@NeuralNine",
		TranscriptInterval: 0,
		StartDate:          &start,
		EndDate:            &end,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.VideoCount != 1 || res.Videos[0].ID != "in-range-01" {
		t.Fatalf("got %+v", res.Videos)
	}
}

func TestIngestAttachesTranscripts(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		playlistTitle: "With Captions",
		playlistIDs:   []string{"has-caps-01", "no-caps-002"},
		videos: map[string]*youtube.VideoInfo{
			"has-caps-01": testVideo("has-caps-01", "Spoken", base, 60),
			"no-caps-002": testVideo("no-caps-002", "Silent", base.Add(time.Hour), 60),
		},
	}
	tr := &fakeTranscripts{byID: map[string]*domain.Transcript{
		"has-caps-01": {Language: "en", FormattedText: "[00:00:00] hello"},
	}}
	e := newTestEngine(api, tr)

	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "https://www.youtube.com/playlist?list=PLabc123_-xyz",
		IncludeTranscript:  true,
		TranscriptInterval: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	var with, without int
	for _, v := range res.Videos {
		if v.Transcript != nil {
			with++
		} else {
			without++
		}
	}
	if with != 1 || without != 1 {
		t.Errorf("transcripts attached: with=%d without=%d", with, without)
	}
	if !strings.Contains(res.DigestText, "Transcript (en):") {
		t.Error("digest should include the transcript section")
	}

	snap := e.stats.Snapshot()
	if snap.TranscriptHits != 1 || snap.TranscriptMisses != 1 {
		t.Errorf("stats = %+v", snap)
	}
}

func TestIngestSkipsTranscriptsWhenNotRequested(t *testing.T) {
	api := &fakeAPI{videos: map[string]*youtube.VideoInfo{
		"dQw4w9WgXcQ": testVideo("dQw4w9WgXcQ", "Video", time.Now().UTC(), 60),
	}}
	tr := &fakeTranscripts{byID: map[string]*domain.Transcript{}}
	e := newTestEngine(api, tr)

	if _, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "https://youtu.be/dQw4w9WgXcQ",
		TranscriptInterval: 0,
	}); err != nil {
		t.Fatal(err)
	}
	if tr.fetches != 0 {
		t.Errorf("transcript source called %d times, want 0", tr.fetches)
	}
}

func TestIngestInvalidRequest(t *testing.T) {
	e := newTestEngine(&fakeAPI{}, nil)
	_, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "something",
		TranscriptInterval: 7,
	})
	if errors.CodeOf(err) != errors.CodeInvalidInput {
		t.Fatalf("want INVALID_INPUT, got %v", err)
	}
}

func TestIngestCoalescesIdenticalRequests(t *testing.T) {
	release := make(chan struct{})
	api := &fakeAPI{
		blockGetVideos: release,
		videos: map[string]*youtube.VideoInfo{
			"dQw4w9WgXcQ": testVideo("dQw4w9WgXcQ", "Video", time.Now().UTC(), 60),
		},
	}
	e := newTestEngine(api, nil)

	req := func() *domain.IngestRequest {
		return &domain.IngestRequest{URLOrQuery: "https://youtu.be/dQw4w9WgXcQ", TranscriptInterval: 0}
	}

	var wg sync.WaitGroup
	results := make([]*domain.IngestResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = e.Ingest(context.Background(), req())
		}()
	}

	// Let the first flight reach the blocked call, then join the second
	// and release them together.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range errs {
		if errs[i] != nil {
			t.Fatal(errs[i])
		}
	}
	if api.getVideosCalls != 1 {
		t.Errorf("GetVideos called %d times, want 1 shared flight", api.getVideosCalls)
	}
	if results[0].DigestText != results[1].DigestText {
		t.Error("coalesced requests should share one result")
	}
}

func TestIngestQuotaDeltaDoesNotFlagCheapRequests(t *testing.T) {
	// Another request's expensive calls can land inside this request's
	// counter window; the flag must come from the source kind alone.
	api := &fakeAPI{
		extraQuota: 100,
		videos: map[string]*youtube.VideoInfo{
			"dQw4w9WgXcQ": testVideo("dQw4w9WgXcQ", "Video", time.Now().UTC(), 60),
		},
	}
	e := newTestEngine(api, nil)

	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "https://youtu.be/dQw4w9WgXcQ",
		TranscriptInterval: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.HighQuotaCost {
		t.Error("video request flagged high quota cost from a foreign counter delta")
	}
}

func TestIngestChannelResolvedViaSearchIsHighQuotaCost(t *testing.T) {
	api := &fakeAPI{
		channel:     &youtube.ResolvedChannel{ID: "UCchan", Title: "Found By Search", UploadsPlaylistID: "UUchan", ViaSearch: true},
		playlistIDs: []string{"only-vid-01"},
		videos: map[string]*youtube.VideoInfo{
			"only-vid-01": testVideo("only-vid-01", "Only", time.Now().UTC(), 60),
		},
	}
	e := newTestEngine(api, nil)

	res, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "@ObscureName",
		TranscriptInterval: 0,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.HighQuotaCost {
		t.Error("channel resolved through a search probe should be flagged high quota cost")
	}
}

func TestIngestParentCancelPassesThrough(t *testing.T) {
	api := &fakeAPI{
		blockGetVideos: make(chan struct{}), // never released
		videos:         map[string]*youtube.VideoInfo{},
	}
	e := newTestEngine(api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := e.Ingest(ctx, &domain.IngestRequest{
		URLOrQuery:         "https://youtu.be/dQw4w9WgXcQ",
		TranscriptInterval: 0,
	})
	if !stderrors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled to pass through, got %v", err)
	}
	if errors.CodeOf(err) == errors.CodeTimeout {
		t.Error("cancellation must not be reported as a deadline timeout")
	}
}

func TestIngestDeadlineMapsToTimeout(t *testing.T) {
	api := &fakeAPI{
		blockGetVideos: make(chan struct{}), // never released
		videos:         map[string]*youtube.VideoInfo{},
	}
	e := newTestEngine(api, nil)
	e.cfg.RequestDeadline = 50 * time.Millisecond

	_, err := e.Ingest(context.Background(), &domain.IngestRequest{
		URLOrQuery:         "https://youtu.be/dQw4w9WgXcQ",
		TranscriptInterval: 0,
	})
	if errors.CodeOf(err) != errors.CodeTimeout {
		t.Fatalf("want TIMEOUT, got %v", err)
	}
}
