package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/medgrove/medai-web-ui/internal/backend"
	"github.com/medgrove/medai-web-ui/internal/history"
	"github.com/medgrove/medai-web-ui/internal/models"
	"github.com/medgrove/medai-web-ui/internal/stats"
)

type dashboardPageData struct {
	Summary summaryView
	History historyView
}

// HandleDashboard renders the dashboard page with the stats summary and the
// current history page. Subsequent refreshes arrive over SSE.
func (m *Main) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	m.stats.Reconcile(ctx, stats.SourceDashboard)
	if !m.paginator.Loaded() {
		// First visit in this process: populate the list before rendering.
		// A failure already degraded to an empty view and logged.
		_, _ = m.paginator.LoadPage(ctx, 1, backend.HistoryQuery{})
	}
	page, q := m.paginator.Current()

	data := dashboardPageData{
		Summary: summaryViewOf(m.stats.Summary(), false),
		History: historyViewOf(page, q),
	}

	if err := m.templates.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		m.logger.Error("Failed to execute dashboard template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleHistory loads one history page and writes the rendered list partial.
// The same render is also published to the dashboard SSE topic so every open
// tab stays in sync.
func (m *Main) HandleHistory(w http.ResponseWriter, r *http.Request) {
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, "Invalid page number", http.StatusBadRequest)
			return
		}
		page = n
	}

	q := backend.HistoryQuery{
		Search: r.URL.Query().Get("search"),
		Filter: r.URL.Query().Get("filter"),
	}

	res, err := m.paginator.LoadPage(r.Context(), page, q)
	if err != nil {
		// The view already shows the empty state; report the failure too.
		m.Notify(models.NoticeError, "Failed to load history")
	}

	if err := m.templates.ExecuteTemplate(w, "history_list", historyViewOf(res, q)); err != nil {
		m.logger.Error("Failed to execute history template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleHistoryDelete removes one record on the backend and reloads the
// current page. Requires confirm=true, mirroring the browser dialog.
func (m *Main) HandleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id, err := strconv.ParseInt(r.FormValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid record id", http.StatusBadRequest)
		return
	}

	confirm := r.FormValue("confirm") == "true"
	msg, err := m.paginator.Delete(r.Context(), id, confirm)
	switch {
	case errors.Is(err, history.ErrConfirmationRequired):
		http.Error(w, "Confirmation required", http.StatusBadRequest)
		return
	case err != nil:
		m.Notify(models.NoticeError, "Failed to delete record")
		http.Error(w, "Failed to delete record", http.StatusBadGateway)
		return
	}

	m.Notify(models.NoticeSuccess, msg)
	w.WriteHeader(http.StatusNoContent)
}

// HandleHistoryClear empties the rendered list without touching the backend.
// The records reappear on the next reload; the notice says as much.
func (m *Main) HandleHistoryClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	m.paginator.ClearLocal()
	m.Notify(models.NoticeInfo, "History cleared from view only; records remain on the server")
	w.WriteHeader(http.StatusNoContent)
}

// HandleConversation renders the full detail of one history record.
func (m *Main) HandleConversation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid record id", http.StatusBadRequest)
		return
	}

	conv, err := m.paginator.Conversation(r.Context(), id)
	if err != nil {
		m.logger.Error("Failed to load conversation",
			slog.Int64("id", id),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Conversation not found", http.StatusNotFound)
		return
	}

	if err := m.templates.ExecuteTemplate(w, "conversation", conv); err != nil {
		m.logger.Error("Failed to execute conversation template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleDownload streams the backend's CSV export straight through.
func (m *Main) HandleDownload(w http.ResponseWriter, r *http.Request) {
	body, err := m.paginator.DownloadCSV(r.Context())
	if err != nil {
		m.logger.Error("Failed to download history", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Failed to download history", http.StatusBadGateway)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "chat_history.csv"))
	if _, err := io.Copy(w, body); err != nil {
		m.logger.Error("Failed to stream history download", slog.String(errLoggerKey, err.Error()))
	}
}
