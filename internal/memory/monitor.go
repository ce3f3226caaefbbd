// Package memory watches the process footprint and sheds cache
// contents when it crosses the configured high-water mark.
package memory

import (
	"context"
	"os"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"

	"github.com/youtubingest/youtubingest-go/internal/cache"
	"github.com/youtubingest/youtubingest-go/internal/config"
)

// Monitor samples resident memory on an interval and asks the cache
// registry to clear, lowest priority first, while pressure persists.
type Monitor struct {
	cfg      config.MemoryConfig
	registry *cache.Registry
	logger   *zap.Logger
	rss      func() (uint64, error)
}

func NewMonitor(cfg config.MemoryConfig, registry *cache.Registry, logger *zap.Logger) *Monitor {
	m := &Monitor{cfg: cfg, registry: registry, logger: logger}
	m.rss = m.processRSS
	return m
}

// Run blocks until ctx is done, checking memory each interval.
func (m *Monitor) Run(ctx context.Context) {
	interval := m.cfg.CheckInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check()
		}
	}
}

// Check performs one pressure evaluation and relief pass.
func (m *Monitor) Check() {
	if !m.pressured() {
		return
	}
	m.logger.Warn("memory pressure detected, clearing caches",
		zap.Uint64("threshold_bytes", m.thresholdBytes()))

	cleared := m.registry.PressureClear(m.pressured)
	m.logger.Info("cache pressure relief finished", zap.Int("entries_cleared", cleared))
}

func (m *Monitor) pressured() bool {
	rss, err := m.rss()
	if err != nil {
		m.logger.Debug("memory sample failed", zap.Error(err))
		return false
	}
	return rss > m.thresholdBytes()
}

func (m *Monitor) thresholdBytes() uint64 {
	softCap := uint64(m.cfg.SoftCapMB) << 20
	return uint64(float64(softCap) * m.cfg.HighWaterFraction)
}

func (m *Monitor) processRSS() (uint64, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0, err
	}
	info, err := p.MemoryInfo()
	if err != nil {
		return 0, err
	}
	return info.RSS, nil
}
