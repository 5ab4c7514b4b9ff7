// Package history fetches, filters, and paginates persisted past
// conversations from the backend, independent of the live session. Every
// load replaces the rendered list wholesale; there is no append mode.
package history

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/medgrove/medai-web-ui/internal/backend"
	"github.com/medgrove/medai-web-ui/internal/models"
)

// ErrConfirmationRequired rejects a delete that was not explicitly
// confirmed.
var ErrConfirmationRequired = errors.New("confirmation required")

// Backend is the slice of the transport client the paginator consumes.
type Backend interface {
	History(ctx context.Context, page int, q backend.HistoryQuery) (models.HistoryPage, error)
	Conversation(ctx context.Context, id int64) (models.Conversation, error)
	DeleteHistory(ctx context.Context, id int64) (string, error)
	DownloadHistory(ctx context.Context) (io.ReadCloser, error)
}

// View is the render surface for the history list. RenderPage always
// receives a complete page; an empty record set means the explicit
// "no results" state, never an error.
type View interface {
	RenderPage(page models.HistoryPage, q backend.HistoryQuery)
}

// StatsSyncer refreshes the dashboard summary after a remote mutation.
type StatsSyncer interface {
	Reconcile(ctx context.Context, source string)
}

// Paginator drives the history list. It remembers the last loaded page and
// query so deletes can reload in place.
type Paginator struct {
	backend Backend
	view    View
	stats   StatsSyncer

	logger *slog.Logger

	mu      sync.Mutex
	current models.HistoryPage
	query   backend.HistoryQuery
	loaded  bool
}

// NewPaginator builds a paginator. stats may be nil, which disables the
// post-delete summary refresh.
func NewPaginator(b Backend, view View, stats StatsSyncer, logger *slog.Logger) *Paginator {
	return &Paginator{
		backend: b,
		view:    view,
		stats:   stats,
		logger:  logger.With(slog.String("module", "history")),
		current: models.HistoryPage{CurrentPage: 1, TotalPages: 1},
	}
}

// LoadPage fetches one page and replaces the rendered list. Pages are
// 1-indexed; a page beyond the last renders as the no-results state. A fetch
// failure degrades to an empty view and is returned for the caller to
// surface as a notice; it never propagates further.
func (p *Paginator) LoadPage(ctx context.Context, page int, q backend.HistoryQuery) (models.HistoryPage, error) {
	if page < 1 {
		page = 1
	}

	res, err := p.backend.History(ctx, page, q)
	if err != nil {
		p.logger.Error("Failed to load history page",
			slog.Int("page", page),
			slog.String(errLoggerKey, err.Error()))

		empty := models.HistoryPage{CurrentPage: page, TotalPages: 1}
		p.setCurrent(empty, q)
		p.view.RenderPage(empty, q)
		return empty, fmt.Errorf("failed to load history: %w", err)
	}

	if res.CurrentPage == 0 {
		res.CurrentPage = page
	}
	if res.TotalPages == 0 {
		res.TotalPages = 1
	}

	p.mu.Lock()
	p.current = res
	p.query = q
	p.loaded = true
	p.mu.Unlock()

	p.view.RenderPage(res, q)
	return res, nil
}

// Reload re-fetches the page and query loaded last.
func (p *Paginator) Reload(ctx context.Context) (models.HistoryPage, error) {
	p.mu.Lock()
	page, q := p.current.CurrentPage, p.query
	p.mu.Unlock()
	return p.LoadPage(ctx, page, q)
}

// Delete removes one record server-side after an explicit confirmation,
// reloads the current page, and triggers exactly one summary
// reconciliation so the dashboard stays consistent with the server.
func (p *Paginator) Delete(ctx context.Context, id int64, confirm bool) (string, error) {
	if !confirm {
		return "", ErrConfirmationRequired
	}

	msg, err := p.backend.DeleteHistory(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to delete record %d: %w", id, err)
	}

	if _, err := p.Reload(ctx); err != nil {
		// The delete itself succeeded; a stale list is a degraded view,
		// not a failure of the operation.
		p.logger.Error("Failed to reload history after delete",
			slog.Int64("id", id),
			slog.String(errLoggerKey, err.Error()))
	}

	if p.stats != nil {
		p.stats.Reconcile(ctx, "dashboard-stats")
	}

	return msg, nil
}

// ClearLocal empties the rendered list without touching the backend. Bulk
// deletion is not supported server-side; this is an explicitly local-only
// operation and must never claim the backend state changed.
func (p *Paginator) ClearLocal() {
	empty := models.HistoryPage{CurrentPage: 1, TotalPages: 1}
	p.setCurrent(empty, backend.HistoryQuery{})
	p.view.RenderPage(empty, backend.HistoryQuery{})
}

// Conversation fetches the detail view of one record.
func (p *Paginator) Conversation(ctx context.Context, id int64) (models.Conversation, error) {
	conv, err := p.backend.Conversation(ctx, id)
	if err != nil {
		return models.Conversation{}, fmt.Errorf("failed to load conversation %d: %w", id, err)
	}
	return conv, nil
}

// DownloadCSV streams the backend's CSV export. The caller owns the body.
func (p *Paginator) DownloadCSV(ctx context.Context) (io.ReadCloser, error) {
	body, err := p.backend.DownloadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download history: %w", err)
	}
	return body, nil
}

// Current returns the last loaded page and query.
func (p *Paginator) Current() (models.HistoryPage, backend.HistoryQuery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current, p.query
}

// Loaded reports whether any fetch has succeeded in this process. An empty
// record list alone says nothing: a backend with no history yet loads
// successfully too.
func (p *Paginator) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded
}

func (p *Paginator) setCurrent(page models.HistoryPage, q backend.HistoryQuery) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = page
	p.query = q
}

const errLoggerKey = "err"
