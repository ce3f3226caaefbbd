package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/youtubingest/youtubingest-go/internal/cache"
	"github.com/youtubingest/youtubingest-go/internal/config"
)

type fakeUpstream struct {
	server     *httptest.Server
	watchHits  atomic.Int64
	cuesHits   atomic.Int64
	pages      map[string]string // videoID -> watch page body
	timedtexts map[string]string // path -> XML body
}

func newFakeUpstream(t *testing.T) *fakeUpstream {
	t.Helper()
	f := &fakeUpstream{
		pages:      make(map[string]string),
		timedtexts: make(map[string]string),
	}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/watch":
			f.watchHits.Add(1)
			body, ok := f.pages[r.URL.Query().Get("v")]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprint(w, body)
		case strings.HasPrefix(r.URL.Path, "/timedtext"):
			f.cuesHits.Add(1)
			body, ok := f.timedtexts[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "text/xml")
			fmt.Fprint(w, body)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

// addVideo registers a watch page advertising the given tracks and
// wires each track's baseUrl back at this server.
func (f *fakeUpstream) addVideo(videoID string, tracks []captionTrack, playability string) {
	for i := range tracks {
		if tracks[i].BaseURL == "" {
			path := fmt.Sprintf("/timedtext/%s/%s/%s", videoID, tracks[i].LanguageCode, tracks[i].Kind)
			tracks[i].BaseURL = f.server.URL + path
		}
	}
	pr := map[string]any{
		"captions": map[string]any{
			"playerCaptionsTracklistRenderer": map[string]any{
				"captionTracks": tracks,
			},
		},
	}
	if playability != "" {
		pr["playabilityStatus"] = map[string]any{"status": playability, "reason": "test"}
	}
	raw, _ := json.Marshal(pr)
	f.pages[videoID] = fmt.Sprintf(
		"<html><script>var ytInitialPlayerResponse = %s;var other = {};</script></html>", raw)
}

func (f *fakeUpstream) addCues(videoID, lang, kind, xmlBody string) {
	f.timedtexts[fmt.Sprintf("/timedtext/%s/%s/%s", videoID, lang, kind)] = xmlBody
}

func newTestSource(t *testing.T, f *fakeUpstream, prefs ...string) *Source {
	t.Helper()
	if len(prefs) == 0 {
		prefs = []string{"en"}
	}
	cfg := config.TranscriptConfig{
		Concurrency:        2,
		PreferredLanguages: prefs,
		FetchTimeout:       5 * time.Second,
		MinDelay:           time.Millisecond,
	}
	pos := cache.NewLRU("transcripts", 64, 0)
	neg := cache.NewLRU("transcript_errors", 64, time.Hour)
	s := NewSource(cfg, pos, neg, zap.NewNop())
	s.watchBase = f.server.URL
	return s
}

const simpleCuesXML = `<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0.5" dur="2.0">Hello   everyone</text>
  <text start="3.1" dur="2.0">welcome &amp;amp; thanks</text>
  <text start="12.0" dur="1.5">second bucket</text>
  <text start="14.0" dur="1.5">second bucket</text>
  <text start="25.0" dur="1.0">third</text>
</transcript>`

func TestFetchJoinsCuesWithoutInterval(t *testing.T) {
	f := newFakeUpstream(t)
	f.addVideo("vid01", []captionTrack{{LanguageCode: "en"}}, "")
	f.addCues("vid01", "en", "", simpleCuesXML)

	s := newTestSource(t, f)
	tr, err := s.Fetch(context.Background(), NewVideoRef("vid01", "", ""), 0)
	if err != nil {
		t.Fatal(err)
	}
	if tr == nil {
		t.Fatal("expected a transcript")
	}
	if tr.Language != "en" {
		t.Errorf("language = %q", tr.Language)
	}
	want := "Hello everyone welcome & thanks second bucket second bucket third"
	if tr.FormattedText != want {
		t.Errorf("text = %q, want %q", tr.FormattedText, want)
	}
}

func TestFetchBucketsByInterval(t *testing.T) {
	f := newFakeUpstream(t)
	f.addVideo("vid02", []captionTrack{{LanguageCode: "en"}}, "")
	f.addCues("vid02", "en", "", simpleCuesXML)

	s := newTestSource(t, f)
	tr, err := s.Fetch(context.Background(), NewVideoRef("vid02", "", ""), 10)
	if err != nil {
		t.Fatal(err)
	}
	want := strings.Join([]string{
		"[00:00:00] Hello everyone welcome & thanks",
		"[00:00:10] second bucket",
		"[00:00:20] third",
	}, "\n")
	if tr.FormattedText != want {
		t.Errorf("text =\n%q\nwant\n%q", tr.FormattedText, want)
	}
}

func TestFetchPositiveCacheSkipsNetwork(t *testing.T) {
	f := newFakeUpstream(t)
	f.addVideo("vid03", []captionTrack{{LanguageCode: "en"}}, "")
	f.addCues("vid03", "en", "", simpleCuesXML)

	s := newTestSource(t, f)
	ref := NewVideoRef("vid03", "", "")
	if _, err := s.Fetch(context.Background(), ref, 0); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Fetch(context.Background(), ref, 0); err != nil {
		t.Fatal(err)
	}
	if got := f.watchHits.Load(); got != 1 {
		t.Errorf("watch page fetched %d times, want 1", got)
	}
	if got := f.cuesHits.Load(); got != 1 {
		t.Errorf("timedtext fetched %d times, want 1", got)
	}
}

func TestFetchNoTracksIsNegativeCached(t *testing.T) {
	f := newFakeUpstream(t)
	f.addVideo("vid04", nil, "")

	s := newTestSource(t, f)
	ref := NewVideoRef("vid04", "", "")
	tr, err := s.Fetch(context.Background(), ref, 0)
	if err != nil || tr != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", tr, err)
	}
	if _, err := s.Fetch(context.Background(), ref, 0); err != nil {
		t.Fatal(err)
	}
	if got := f.watchHits.Load(); got != 1 {
		t.Errorf("watch page fetched %d times, want 1", got)
	}
}

func TestFetchUnavailableVideoIsNegativeCached(t *testing.T) {
	f := newFakeUpstream(t)
	f.addVideo("vid05", []captionTrack{{LanguageCode: "en"}}, "LOGIN_REQUIRED")

	s := newTestSource(t, f)
	ref := NewVideoRef("vid05", "", "")
	tr, err := s.Fetch(context.Background(), ref, 0)
	if err != nil || tr != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", tr, err)
	}
	if _, ok := s.negative.Get("vid05"); !ok {
		t.Error("unavailable video should be negative-cached")
	}
}

func TestFetchPrefersVideoDeclaredLanguage(t *testing.T) {
	f := newFakeUpstream(t)
	f.addVideo("vid06", []captionTrack{
		{LanguageCode: "en"},
		{LanguageCode: "ja"},
	}, "")
	f.addCues("vid06", "ja", "", `<transcript><text start="0" dur="1">konnichiwa</text></transcript>`)

	s := newTestSource(t, f)
	tr, err := s.Fetch(context.Background(), NewVideoRef("vid06", "", "ja"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if tr.Language != "ja" {
		t.Errorf("language = %q, want ja", tr.Language)
	}
}

func TestSelectTrackPrefersManualOverGenerated(t *testing.T) {
	tracks := []captionTrack{
		{LanguageCode: "en", Kind: "asr"},
		{LanguageCode: "en"},
	}
	got, ok := selectTrack(tracks, []string{"en"})
	if !ok || got.generated() {
		t.Fatalf("selected %+v, want manual en track", got)
	}
}

func TestSelectTrackExactBeatsBaseMatch(t *testing.T) {
	tracks := []captionTrack{
		{LanguageCode: "en-GB"},
		{LanguageCode: "en-US"},
	}
	got, ok := selectTrack(tracks, []string{"en-US"})
	if !ok || got.LanguageCode != "en-US" {
		t.Fatalf("selected %+v, want en-US", got)
	}

	// With only a base preference the first base-language match wins.
	got, ok = selectTrack(tracks, []string{"en"})
	if !ok || got.LanguageCode != "en-GB" {
		t.Fatalf("selected %+v, want en-GB (first base match)", got)
	}
}

func TestSelectTrackFallsBackToAnyManual(t *testing.T) {
	tracks := []captionTrack{
		{LanguageCode: "de", Kind: "asr"},
		{LanguageCode: "fr"},
	}
	got, ok := selectTrack(tracks, []string{"ko"})
	if !ok || got.LanguageCode != "fr" {
		t.Fatalf("selected %+v, want manual fr track", got)
	}
}

func TestSelectTrackNoTracks(t *testing.T) {
	if _, ok := selectTrack(nil, []string{"en"}); ok {
		t.Fatal("selectTrack on empty list should report no match")
	}
}

func TestExtractPlayerResponseBalancedBraces(t *testing.T) {
	page := `prefix ytInitialPlayerResponse = {"a":{"b":"val with } brace","c":1}};rest`
	raw, err := extractPlayerResponse(page)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		t.Fatalf("extracted text is not valid JSON: %v", err)
	}
}

func TestExtractPlayerResponseMissingMarker(t *testing.T) {
	if _, err := extractPlayerResponse("<html>nothing here</html>"); err == nil {
		t.Fatal("expected an error for a page without the marker")
	}
}
