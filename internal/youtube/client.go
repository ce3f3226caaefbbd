package youtube

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	youtubeapi "google.golang.org/api/youtube/v3"

	"github.com/youtubingest/youtubingest-go/internal/cache"
	"github.com/youtubingest/youtubingest-go/internal/config"
	"github.com/youtubingest/youtubingest-go/internal/textproc"
	"github.com/youtubingest/youtubingest-go/internal/util"
	"github.com/youtubingest/youtubingest-go/pkg/errors"
)

// Per-endpoint quota costs published for the Data API.
const (
	costList         = 1
	costSearch       = 100
	costCaptionsList = 50

	quotaCooldown = time.Hour
	pageSize      = 50

	// With date filtering active, give up after this many consecutive
	// pages yielding no in-window items.
	maxEmptyFilterPages = 3
)

// VideoInfo is the metadata slice of one video the pipeline consumes.
type VideoInfo struct {
	ID                   string
	Title                string
	Description          string
	ChannelID            string
	ChannelTitle         string
	PublishedAt          time.Time
	DurationSeconds      int
	Tags                 []string
	LiveBroadcastContent string
	DefaultLanguage      string
	DefaultAudioLanguage string
}

// ResolvedChannel is the outcome of channel resolution. ViaSearch marks
// resolutions that required the search.list fallback.
type ResolvedChannel struct {
	ID                string
	Title             string
	UploadsPlaylistID string
	ViaSearch         bool
}

// resolveEntry is what the resolve cache stores; a nil channel is a
// negative entry for a definitive not-found.
type resolveEntry struct {
	channel *ResolvedChannel
}

// Caches groups the client-owned caches, built by the container and
// registered with the cache registry.
type Caches struct {
	Resolve       *cache.LRU
	Metadata      *cache.LRU
	PlaylistPages *cache.LRU
	SearchPages   *cache.LRU
	Videos        *cache.LRU
}

// Client wraps the Data API with quota accounting, retries, caching,
// and a circuit breaker.
type Client struct {
	svc     *youtubeapi.Service
	cfg     config.YouTubeConfig
	breaker *util.CircuitBreaker
	caches  Caches
	logger  *zap.Logger

	mu        sync.Mutex
	callCount int
	quotaUsed int
	quotaOpen bool
	lastCall  time.Time
	rng       *rand.Rand
}

// NewClient builds the API client. Extra options are appended after the
// API key, which lets tests point the service at a local endpoint.
func NewClient(ctx context.Context, cfg config.YouTubeConfig, breaker *util.CircuitBreaker, caches Caches, logger *zap.Logger, extra ...option.ClientOption) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.NewAPIConfigError("YouTube API key is required")
	}

	opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, extra...)
	svc, err := youtubeapi.NewService(ctx, opts...)
	if err != nil {
		return nil, errors.NewAPIConfigError("failed to create YouTube service").WithCause(err)
	}

	logger.Info("YouTube client initialized",
		zap.String("api_key", util.ObfuscateKey(cfg.APIKey)))

	return &Client{
		svc:     svc,
		cfg:     cfg,
		breaker: breaker,
		caches:  caches,
		logger:  logger,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Counters returns the running call and quota totals. The engine reads
// these before and after a request and reports the delta.
func (c *Client) Counters() (calls, quota int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.callCount, c.quotaUsed
}

// recordCall increments the counters for one network attempt.
func (c *Client) recordCall(endpoint string, cost int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callCount++
	c.quotaUsed += cost
	c.logger.Debug("API call recorded",
		zap.String("endpoint", endpoint),
		zap.Int("cost", cost),
		zap.Int("quota_used", c.quotaUsed))
}

// waitForTurn enforces a jittered minimum delay between upstream calls.
func (c *Client) waitForTurn(ctx context.Context) error {
	if c.cfg.MinCallDelay <= 0 {
		return nil
	}

	c.mu.Lock()
	delay := c.cfg.MinCallDelay
	if spread := c.cfg.MaxCallDelay - c.cfg.MinCallDelay; spread > 0 {
		delay += time.Duration(c.rng.Int63n(int64(spread)))
	}
	wait := time.Until(c.lastCall.Add(delay))
	c.lastCall = time.Now().Add(maxDuration(0, wait))
	c.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}

// do runs one upstream call through the breaker, pacing, retry, and
// accounting layers.
func (c *Client) do(ctx context.Context, endpoint string, cost int, fn func(context.Context) error) error {
	if !c.breaker.CanExecute() {
		c.mu.Lock()
		quotaOpen := c.quotaOpen
		c.mu.Unlock()
		if quotaOpen {
			return errors.NewQuotaExceeded("YouTube API quota exhausted, circuit open")
		}
		return errors.NewServiceUnavailable("YouTube API circuit open")
	}

	var lastErr error
	backoff := c.cfg.RetryBaseDelay
	for attempt := 0; attempt <= c.cfg.RetryAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, "request cancelled before reaching YouTube")
		}
		if err := c.waitForTurn(ctx); err != nil {
			return errors.Wrap(err, "request cancelled while pacing")
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if c.cfg.CallTimeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		c.recordCall(endpoint, cost)

		if err == nil {
			c.breaker.RecordSuccess()
			c.mu.Lock()
			c.quotaOpen = false
			c.mu.Unlock()
			return nil
		}

		classified, retryable := c.classifyError(endpoint, err)
		lastErr = classified
		if !retryable {
			return classified
		}

		c.breaker.RecordFailure(0)
		if attempt == c.cfg.RetryAttempts {
			break
		}

		sleep := backoff + c.jitter(int64(backoff)/2+1)
		sleep = clampDuration(sleep, 100*time.Millisecond, 60*time.Second)
		c.logger.Warn("retrying YouTube API call",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Duration("sleep", sleep),
			zap.Error(err))
		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return errors.Wrap(ctx.Err(), "request cancelled during retry backoff")
		}
		backoff = clampDuration(backoff*2, 100*time.Millisecond, 60*time.Second)
	}

	return errors.NewServiceUnavailable(fmt.Sprintf("YouTube %s failed after retries", endpoint)).WithCause(lastErr)
}

// jitter draws from the shared generator under the client mutex.
func (c *Client) jitter(n int64) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Duration(c.rng.Int63n(n))
}

func clampDuration(d, lo, hi time.Duration) time.Duration {
	if d < lo {
		return lo
	}
	if d > hi {
		return hi
	}
	return d
}

// classifyError maps an upstream error to the taxonomy and reports
// whether it is worth retrying.
func (c *Client) classifyError(endpoint string, err error) (error, bool) {
	if apiErr, ok := err.(*googleapi.Error); ok {
		reason := ""
		if len(apiErr.Errors) > 0 {
			reason = apiErr.Errors[0].Reason
		}
		switch {
		case apiErr.Code == 403 && isQuotaReason(reason):
			c.mu.Lock()
			c.quotaOpen = true
			c.mu.Unlock()
			c.breaker.TripOpen(quotaCooldown)
			c.logger.Error("YouTube API quota exceeded",
				zap.String("endpoint", endpoint),
				zap.String("reason", reason))
			return errors.NewQuotaExceeded("YouTube API quota exceeded").WithCause(apiErr), false
		case apiErr.Code == 403 || apiErr.Code == 401:
			return errors.NewAPIConfigError("YouTube API key rejected").WithCause(apiErr), false
		case apiErr.Code == 404:
			return errors.NewResourceNotFound("YouTube resource not found").WithCause(apiErr), false
		case apiErr.Code == 429 || apiErr.Code >= 500:
			return errors.NewServiceUnavailable(fmt.Sprintf("YouTube %s returned %d", endpoint, apiErr.Code)).WithCause(apiErr), true
		case apiErr.Code == 400 && reason == "keyInvalid":
			return errors.NewAPIConfigError("YouTube API key invalid").WithCause(apiErr), false
		default:
			return errors.NewInvalidInput(fmt.Sprintf("YouTube %s rejected the request", endpoint)).WithCause(apiErr), false
		}
	}
	// Timeouts and transport failures are worth another attempt.
	return errors.NewServiceUnavailable(fmt.Sprintf("YouTube %s transport failure", endpoint)).WithCause(err), true
}

func isQuotaReason(reason string) bool {
	switch reason {
	case "quotaExceeded", "dailyLimitExceeded", "servingLimitExceeded", "rateLimitExceeded", "userRateLimitExceeded":
		return true
	}
	return false
}

// --- channel resolution ---

// ResolveChannel turns a channel reference (ID, handle, custom slug, or
// legacy username) into a channel ID, title, and uploads playlist.
// Definitive not-found outcomes are cached negatively.
func (c *Client) ResolveChannel(ctx context.Context, kind InputKind, ref string) (*ResolvedChannel, error) {
	key := fmt.Sprintf("resolve:%s:%s", kind, strings.ToLower(ref))
	if v, ok := c.caches.Resolve.Get(key); ok {
		entry := v.(resolveEntry)
		if entry.channel == nil {
			return nil, errors.NewResourceNotFound("channel not found").WithContext("ref", ref)
		}
		return entry.channel, nil
	}

	ch, err := c.probeChannel(ctx, kind, ref)
	if err != nil {
		if errors.CodeOf(err) == errors.CodeResourceNotFound {
			c.caches.Resolve.Put(key, resolveEntry{})
		}
		return nil, err
	}

	c.caches.Resolve.Put(key, resolveEntry{channel: ch})
	return ch, nil
}

// probeChannel runs the probe ladder for one reference kind. The first
// positive probe wins.
func (c *Client) probeChannel(ctx context.Context, kind InputKind, ref string) (*ResolvedChannel, error) {
	notFound := func() error {
		return errors.NewResourceNotFound("channel not found").WithContext("ref", ref)
	}

	switch kind {
	case InputChannelID:
		ch, err := c.channelByID(ctx, ref)
		if err != nil || ch != nil {
			return orNotFound(ch, err, notFound)
		}
		return nil, notFound()
	case InputHandle:
		handle := ref
		if !strings.HasPrefix(handle, "@") {
			handle = "@" + handle
		}
		if ch, err := c.channelByHandle(ctx, handle); err != nil || ch != nil {
			return orNotFound(ch, err, notFound)
		}
		return c.channelBySearch(ctx, strings.TrimPrefix(ref, "@"))
	case InputCustom:
		if ch, err := c.channelByHandle(ctx, "@"+ref); err == nil && ch != nil {
			return ch, nil
		}
		if ch, err := c.channelByUsername(ctx, ref); err == nil && ch != nil {
			return ch, nil
		}
		return c.channelBySearch(ctx, ref)
	case InputUser:
		if ch, err := c.channelByUsername(ctx, ref); err != nil || ch != nil {
			return orNotFound(ch, err, notFound)
		}
		return c.channelBySearch(ctx, ref)
	default:
		return c.channelBySearch(ctx, ref)
	}
}

func orNotFound(ch *ResolvedChannel, err error, notFound func() error) (*ResolvedChannel, error) {
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, notFound()
	}
	return ch, nil
}

func (c *Client) channelByID(ctx context.Context, id string) (*ResolvedChannel, error) {
	return c.channelsList(ctx, func(call *youtubeapi.ChannelsListCall) *youtubeapi.ChannelsListCall {
		return call.Id(id)
	})
}

func (c *Client) channelByHandle(ctx context.Context, handle string) (*ResolvedChannel, error) {
	return c.channelsList(ctx, func(call *youtubeapi.ChannelsListCall) *youtubeapi.ChannelsListCall {
		return call.ForHandle(handle)
	})
}

func (c *Client) channelByUsername(ctx context.Context, username string) (*ResolvedChannel, error) {
	return c.channelsList(ctx, func(call *youtubeapi.ChannelsListCall) *youtubeapi.ChannelsListCall {
		return call.ForUsername(username)
	})
}

// channelsList runs channels.list with one filter applied; a response
// with no items yields (nil, nil) so the ladder can continue.
func (c *Client) channelsList(ctx context.Context, filter func(*youtubeapi.ChannelsListCall) *youtubeapi.ChannelsListCall) (*ResolvedChannel, error) {
	var resp *youtubeapi.ChannelListResponse
	err := c.do(ctx, "channels.list", costList, func(callCtx context.Context) error {
		call := c.svc.Channels.List([]string{"snippet", "contentDetails"}).MaxResults(1)
		call = filter(call)
		var doErr error
		resp, doErr = call.Context(callCtx).Do()
		return doErr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 {
		return nil, nil
	}
	item := resp.Items[0]
	ch := &ResolvedChannel{ID: item.Id, Title: item.Snippet.Title}
	if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
		ch.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
	}
	return ch, nil
}

// channelBySearch is the last-resort probe: a type=channel search, top
// result wins.
func (c *Client) channelBySearch(ctx context.Context, name string) (*ResolvedChannel, error) {
	var resp *youtubeapi.SearchListResponse
	err := c.do(ctx, "search.list", costSearch, func(callCtx context.Context) error {
		var doErr error
		resp, doErr = c.svc.Search.List([]string{"snippet"}).
			Q(name).
			Type("channel").
			MaxResults(1).
			Context(callCtx).Do()
		return doErr
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Items) == 0 || resp.Items[0].Id == nil || resp.Items[0].Id.ChannelId == "" {
		return nil, errors.NewResourceNotFound("channel not found").WithContext("ref", name)
	}
	// The search hit carries no uploads playlist, so fetch it.
	ch, err := c.ResolveChannel(ctx, InputChannelID, resp.Items[0].Id.ChannelId)
	if err != nil {
		return nil, err
	}
	resolved := *ch
	resolved.ViaSearch = true
	return &resolved, nil
}

// --- metadata ---

// GetChannelMetadata returns a channel's title and uploads playlist.
func (c *Client) GetChannelMetadata(ctx context.Context, channelID string) (*ResolvedChannel, error) {
	key := "channel:" + channelID
	if v, ok := c.caches.Metadata.Get(key); ok {
		return v.(*ResolvedChannel), nil
	}
	ch, err := c.channelByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if ch == nil {
		return nil, errors.NewResourceNotFound("channel not found").WithContext("channel_id", channelID)
	}
	c.caches.Metadata.Put(key, ch)
	return ch, nil
}

// GetPlaylistMetadata returns a playlist's title.
func (c *Client) GetPlaylistMetadata(ctx context.Context, playlistID string) (string, error) {
	key := "playlist:" + playlistID
	if v, ok := c.caches.Metadata.Get(key); ok {
		return v.(string), nil
	}

	var resp *youtubeapi.PlaylistListResponse
	err := c.do(ctx, "playlists.list", costList, func(callCtx context.Context) error {
		var doErr error
		resp, doErr = c.svc.Playlists.List([]string{"snippet"}).
			Id(playlistID).
			MaxResults(1).
			Context(callCtx).Do()
		return doErr
	})
	if err != nil {
		return "", err
	}
	if len(resp.Items) == 0 {
		return "", errors.NewResourceNotFound("playlist not found").WithContext("playlist_id", playlistID)
	}
	title := resp.Items[0].Snippet.Title
	c.caches.Metadata.Put(key, title)
	return title, nil
}

// --- listing ---

type playlistItem struct {
	VideoID     string
	PublishedAt time.Time
}

type playlistPage struct {
	Items     []playlistItem
	NextToken string
}

// ListPlaylistVideoIDs walks a playlist's pages in order, filtering by
// the date window in memory because playlistItems.list accepts no date
// parameters. With filtering active it stops early after several pages
// of consecutive misses, assuming reverse chronological order.
func (c *Client) ListPlaylistVideoIDs(ctx context.Context, playlistID string, start, end *time.Time, maxItems int) ([]string, error) {
	var ids []string
	token := ""
	emptyPages := 0
	filtering := start != nil || end != nil

	for {
		page, err := c.playlistPage(ctx, playlistID, token)
		if err != nil {
			return nil, err
		}

		matched := 0
		for _, item := range page.Items {
			if !inWindow(item.PublishedAt, start, end) {
				continue
			}
			matched++
			ids = append(ids, item.VideoID)
			if len(ids) >= maxItems {
				return ids, nil
			}
		}

		if filtering {
			if matched == 0 {
				emptyPages++
				if emptyPages >= maxEmptyFilterPages {
					c.logger.Debug("stopping playlist walk after consecutive out-of-window pages",
						zap.String("playlist_id", playlistID),
						zap.Int("collected", len(ids)))
					break
				}
			} else {
				emptyPages = 0
			}
		}

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	return ids, nil
}

func (c *Client) playlistPage(ctx context.Context, playlistID, token string) (*playlistPage, error) {
	key := fmt.Sprintf("playlistItems:%s:%s", playlistID, token)
	if v, ok := c.caches.PlaylistPages.Get(key); ok {
		return v.(*playlistPage), nil
	}

	var resp *youtubeapi.PlaylistItemListResponse
	err := c.do(ctx, "playlistItems.list", costList, func(callCtx context.Context) error {
		call := c.svc.PlaylistItems.List([]string{"snippet"}).
			PlaylistId(playlistID).
			MaxResults(pageSize).
			Fields("items(snippet(publishedAt,resourceId/videoId)),nextPageToken")
		if token != "" {
			call = call.PageToken(token)
		}
		var doErr error
		resp, doErr = call.Context(callCtx).Do()
		return doErr
	})
	if err != nil {
		return nil, err
	}

	page := &playlistPage{NextToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Snippet == nil || item.Snippet.ResourceId == nil || item.Snippet.ResourceId.VideoId == "" {
			continue
		}
		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		page.Items = append(page.Items, playlistItem{
			VideoID:     item.Snippet.ResourceId.VideoId,
			PublishedAt: published,
		})
	}

	c.caches.PlaylistPages.Put(key, page)
	return page, nil
}

// SearchVideoIDs pages through search.list for a parsed query. Date
// bounds from the request and from inline operators are intersected.
func (c *Client) SearchVideoIDs(ctx context.Context, query SearchQuery, start, end *time.Time, maxItems int) ([]string, error) {
	after := laterOf(start, query.PublishedAfter)
	before := earlierOf(end, query.PublishedBefore)
	order := query.Order
	if order == "" {
		order = "date"
	}

	channelID := ""
	if query.ChannelName != "" {
		ch, err := c.ResolveChannel(ctx, InputSearch, query.ChannelName)
		if err != nil {
			c.logger.Warn("channel filter resolution failed, searching without it",
				zap.String("channel", query.ChannelName),
				zap.Error(err))
		} else {
			channelID = ch.ID
		}
	}

	fingerprint := fmt.Sprintf("search:%s|o=%s|c=%s|d=%s|a=%s|b=%s",
		query.Terms, order, channelID, query.Duration, formatDayBound(after, false), formatDayBound(before, true))

	var ids []string
	token := ""
	for {
		page, err := c.searchPage(ctx, fingerprint, query, order, channelID, after, before, token)
		if err != nil {
			return nil, err
		}
		for _, id := range page.Items {
			ids = append(ids, id.VideoID)
			if len(ids) >= maxItems {
				return ids, nil
			}
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	return ids, nil
}

type searchPage struct {
	Items     []playlistItem
	NextToken string
}

func (c *Client) searchPage(ctx context.Context, fingerprint string, query SearchQuery, order, channelID string, after, before *time.Time, token string) (*searchPage, error) {
	key := fingerprint + "|t=" + token
	if v, ok := c.caches.SearchPages.Get(key); ok {
		return v.(*searchPage), nil
	}

	var resp *youtubeapi.SearchListResponse
	err := c.do(ctx, "search.list", costSearch, func(callCtx context.Context) error {
		call := c.svc.Search.List([]string{"id"}).
			Q(query.Terms).
			Type("video").
			Order(order).
			MaxResults(pageSize)
		if channelID != "" {
			call = call.ChannelId(channelID)
		}
		if query.Duration != "" {
			call = call.VideoDuration(query.Duration)
		}
		if after != nil {
			call = call.PublishedAfter(formatDayBound(after, false))
		}
		if before != nil {
			call = call.PublishedBefore(formatDayBound(before, true))
		}
		if token != "" {
			call = call.PageToken(token)
		}
		var doErr error
		resp, doErr = call.Context(callCtx).Do()
		return doErr
	})
	if err != nil {
		return nil, err
	}

	page := &searchPage{NextToken: resp.NextPageToken}
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		page.Items = append(page.Items, playlistItem{VideoID: item.Id.VideoId})
	}
	c.caches.SearchPages.Put(key, page)
	return page, nil
}

// GetVideos fetches metadata for IDs in upstream batches of at most the
// configured batch size, preserving input order. IDs absent from the
// response (private or deleted videos) are dropped.
func (c *Client) GetVideos(ctx context.Context, ids []string) ([]*VideoInfo, error) {
	ids = util.UniqueStrings(ids)
	byID := make(map[string]*VideoInfo, len(ids))

	batchSize := c.cfg.MetadataBatchSize
	if batchSize <= 0 || batchSize > pageSize {
		batchSize = pageSize
	}

	for i := 0; i < len(ids); i += batchSize {
		end := minInt(i+batchSize, len(ids))
		batch := ids[i:end]
		infos, err := c.videosBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		for _, info := range infos {
			byID[info.ID] = info
		}
	}

	result := make([]*VideoInfo, 0, len(byID))
	for _, id := range ids {
		if info, ok := byID[id]; ok {
			result = append(result, info)
		}
	}
	return result, nil
}

func (c *Client) videosBatch(ctx context.Context, batch []string) ([]*VideoInfo, error) {
	key := "videos:" + strings.Join(batch, ",")
	if v, ok := c.caches.Videos.Get(key); ok {
		return v.([]*VideoInfo), nil
	}

	var resp *youtubeapi.VideoListResponse
	err := c.do(ctx, "videos.list", costList, func(callCtx context.Context) error {
		var doErr error
		resp, doErr = c.svc.Videos.List([]string{"snippet", "contentDetails"}).
			Id(batch...).
			MaxResults(int64(len(batch))).
			Context(callCtx).Do()
		return doErr
	})
	if err != nil {
		return nil, err
	}

	infos := make([]*VideoInfo, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		published, _ := time.Parse(time.RFC3339, item.Snippet.PublishedAt)
		info := &VideoInfo{
			ID:                   item.Id,
			Title:                item.Snippet.Title,
			Description:          item.Snippet.Description,
			ChannelID:            item.Snippet.ChannelId,
			ChannelTitle:         item.Snippet.ChannelTitle,
			PublishedAt:          published,
			Tags:                 item.Snippet.Tags,
			LiveBroadcastContent: item.Snippet.LiveBroadcastContent,
			DefaultLanguage:      item.Snippet.DefaultLanguage,
			DefaultAudioLanguage: item.Snippet.DefaultAudioLanguage,
		}
		if item.ContentDetails != nil {
			info.DurationSeconds = textproc.ParseISO8601Duration(item.ContentDetails.Duration)
		}
		infos = append(infos, info)
	}

	c.caches.Videos.Put(key, infos)
	return infos, nil
}

// --- helpers ---

func inWindow(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(util.StartOfDayUTC(*start)) {
		return false
	}
	if end != nil && t.After(util.EndOfDayUTC(*end)) {
		return false
	}
	return true
}

// formatDayBound renders a date as the RFC 3339 day boundary the API
// expects: midnight for lower bounds, end of day for upper bounds.
func formatDayBound(t *time.Time, upper bool) string {
	if t == nil {
		return ""
	}
	if upper {
		return util.EndOfDayUTC(*t).Format(time.RFC3339)
	}
	return util.StartOfDayUTC(*t).Format(time.RFC3339)
}

func laterOf(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.After(*b) {
		return a
	}
	return b
}

func earlierOf(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil || a.Before(*b) {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
