// Package app assembles the service's dependency graph.
package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/youtubingest/youtubingest-go/internal/cache"
	"github.com/youtubingest/youtubingest-go/internal/config"
	"github.com/youtubingest/youtubingest-go/internal/domain"
	"github.com/youtubingest/youtubingest-go/internal/engine"
	"github.com/youtubingest/youtubingest-go/internal/httpapi"
	"github.com/youtubingest/youtubingest-go/internal/memory"
	"github.com/youtubingest/youtubingest-go/internal/token"
	"github.com/youtubingest/youtubingest-go/internal/transcript"
	"github.com/youtubingest/youtubingest-go/internal/util"
	"github.com/youtubingest/youtubingest-go/internal/youtube"
)

// Cache TTLs. Transcripts and token counts never go stale, only the
// LRU bound and memory pressure evict them.
const (
	resolveTTL      = time.Hour
	metadataTTL     = 6 * time.Hour
	playlistPageTTL = 30 * time.Minute
	searchPageTTL   = 15 * time.Minute
	videosTTL       = time.Hour
)

// Container bundles the assembled components for the runtime entrypoint.
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Registry *cache.Registry
	Stats    *domain.GlobalStats
	Engine   *engine.Engine
	Monitor  *memory.Monitor
	Server   *httpapi.Server
}

// Build constructs the full dependency graph. All heavy initialization
// happens here so the entrypoint only runs lifecycles.
func Build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	registry := cache.NewRegistry(logger)
	stats := domain.NewGlobalStats()

	// Eviction priority under memory pressure: transcripts carry the
	// bulk of the footprint and go first, the token memo last.
	newCache := func(name string, ttl time.Duration, priority int) *cache.LRU {
		c := cache.NewLRU(name, cfg.CacheCapacity(name), ttl)
		registry.Register(c, priority)
		return c
	}

	transcripts := newCache("transcripts", 0, 1)
	transcriptErrors := newCache("transcript_errors", 0, 2)
	apiCaches := youtube.Caches{
		SearchPages:   newCache("search_pages", searchPageTTL, 3),
		PlaylistPages: newCache("playlist_pages", playlistPageTTL, 4),
		Videos:        newCache("videos", videosTTL, 5),
		Resolve:       newCache("resolve", resolveTTL, 6),
		Metadata:      newCache("metadata", metadataTTL, 7),
	}
	tokenMemo := newCache("token_counts", 0, 8)

	breaker := util.NewCircuitBreaker(
		cfg.Breaker.Threshold,
		cfg.Breaker.ResetTimeout,
		cfg.Breaker.HalfOpenMax,
		logger,
	)

	client, err := youtube.NewClient(ctx, cfg.YouTube, breaker, apiCaches, logger)
	if err != nil {
		return nil, err
	}

	source := transcript.NewSource(cfg.Transcript, transcripts, transcriptErrors, logger)
	counter := token.NewCounter(tokenMemo, logger)

	eng := engine.New(cfg.YouTube, cfg.Engine, client, source, counter, stats, logger)
	monitor := memory.NewMonitor(cfg.Memory, registry, logger)
	server := httpapi.NewServer(cfg.Server, eng, stats, registry, breaker, logger)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Stats:    stats,
		Engine:   eng,
		Monitor:  monitor,
		Server:   server,
	}, nil
}
