// Package stats reconciles the dashboard summary counters with the backend's
// aggregation. The summary is always derived state: the synchronizer fetches,
// normalizes, and publishes complete snapshots, and is the summary's sole
// local writer.
package stats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/medgrove/medai-web-ui/internal/backend"
	"github.com/medgrove/medai-web-ui/internal/models"
)

// Reconciliation sources, carried for logging and for listeners that care
// what prompted a refresh.
const (
	SourceChatResponse = "chat-response"
	SourceDashboard    = "dashboard-stats"
	SourceAnalytics    = "analytics"
)

// Backend is the slice of the transport client the synchronizer consumes.
type Backend interface {
	DashboardStats(ctx context.Context) (backend.StatsPayload, error)
	Analytics(ctx context.Context) (backend.AnalyticsPayload, error)
}

// Listener receives each published summary. firstArrival marks the first
// non-zero summary after a zero baseline; the render layer may show it as a
// transition instead of an instant jump.
type Listener interface {
	SummaryUpdated(summary models.Summary, firstArrival bool)
}

// Synchronizer keeps the dashboard summary consistent with the backend.
type Synchronizer struct {
	backend  Backend
	listener Listener

	logger *slog.Logger

	mu      sync.Mutex
	summary models.Summary
	hasData bool
}

// NewSynchronizer builds a synchronizer. listener may be nil.
func NewSynchronizer(b Backend, listener Listener, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{
		backend:  b,
		listener: listener,
		logger:   logger.With(slog.String("module", "stats")),
		summary:  zeroSummary(),
	}
}

// Reconcile refreshes the summary. It prefers the dedicated stats endpoint,
// derives an equivalent summary from the analytics payload when that is
// unavailable, and falls back to a zeroed summary when both are down;
// stale or partial numbers are never left on screen. The in-memory summary
// is fully updated before the listener is notified.
func (s *Synchronizer) Reconcile(ctx context.Context, source string) {
	summary := s.fetch(ctx, source)

	s.mu.Lock()
	first := !s.hasData && summary.TotalChats > 0
	if summary.TotalChats > 0 {
		s.hasData = true
	}
	s.summary = summary
	s.mu.Unlock()

	if s.listener != nil {
		s.listener.SummaryUpdated(summary, first)
	}
}

func (s *Synchronizer) fetch(ctx context.Context, source string) models.Summary {
	payload, err := s.backend.DashboardStats(ctx)
	if err == nil && payload.Success {
		return models.Summary{
			TotalChats:       payload.Stats.TotalChats,
			AvgConfidence:    normalizeConfidence(payload.Stats.AvgConfidence),
			MostCommonIntent: orDefault(payload.Stats.MostCommonIntent, "N/A"),
			LastActive:       orDefault(payload.Stats.LastActive, "Just now"),
		}
	}
	if err != nil {
		s.logger.Warn("Stats endpoint unavailable, trying analytics",
			slog.String("source", source),
			slog.String(errLoggerKey, err.Error()))
	}

	analytics, err := s.backend.Analytics(ctx)
	if err == nil && analytics.Success {
		return models.Summary{
			TotalChats:       analytics.Summary.TotalChats,
			AvgConfidence:    normalizeConfidence(analytics.Summary.AvgConfidence),
			MostCommonIntent: orDefault(analytics.Summary.MostCommonIntent, "N/A"),
			LastActive:       "Just now",
		}
	}
	if err != nil {
		s.logger.Error("Both summary sources unavailable, zeroing",
			slog.String("source", source),
			slog.String(errLoggerKey, err.Error()))
	}

	return zeroSummary()
}

// Summary returns the last published snapshot.
func (s *Synchronizer) Summary() models.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// Run reconciles on a fixed interval until the context is cancelled.
func (s *Synchronizer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Reconcile(ctx, SourceDashboard)
		}
	}
}

// normalizeConfidence maps a confidence value to a display percentage in
// 0..100. Values at or below 1 are treated as 0-1 fractions.
func normalizeConfidence(v float64) float64 {
	if v <= 1.0 {
		v *= 100
	}
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

func zeroSummary() models.Summary {
	return models.Summary{MostCommonIntent: "N/A", LastActive: "Never"}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

const errLoggerKey = "err"
