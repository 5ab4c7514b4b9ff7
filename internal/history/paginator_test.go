package history_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/medgrove/medai-web-ui/internal/backend"
	"github.com/medgrove/medai-web-ui/internal/history"
	"github.com/medgrove/medai-web-ui/internal/models"
)

type mockBackend struct {
	records    []models.HistoryRecord
	pageSize   int
	historyErr error
	deleteErr  error
	deleted    []int64
}

func (m *mockBackend) History(_ context.Context, page int, q backend.HistoryQuery) (models.HistoryPage, error) {
	if m.historyErr != nil {
		return models.HistoryPage{}, m.historyErr
	}

	filtered := make([]models.HistoryRecord, 0, len(m.records))
	for _, r := range m.records {
		if q.Filter != "" && r.Intent != q.Filter {
			continue
		}
		filtered = append(filtered, r)
	}

	size := m.pageSize
	if size == 0 {
		size = 10
	}
	total := (len(filtered) + size - 1) / size
	if total == 0 {
		total = 1
	}

	start := (page - 1) * size
	var records []models.HistoryRecord
	if start < len(filtered) {
		end := min(start+size, len(filtered))
		records = filtered[start:end]
	}

	return models.HistoryPage{Records: records, CurrentPage: page, TotalPages: total}, nil
}

func (m *mockBackend) Conversation(_ context.Context, id int64) (models.Conversation, error) {
	for _, r := range m.records {
		if r.ID == id {
			return models.Conversation{ID: r.ID, UserQuery: r.UserQuery, BotResponse: r.BotResponse}, nil
		}
	}
	return models.Conversation{}, errors.New("not found")
}

func (m *mockBackend) DeleteHistory(_ context.Context, id int64) (string, error) {
	if m.deleteErr != nil {
		return "", m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	for i, r := range m.records {
		if r.ID == id {
			m.records = append(m.records[:i], m.records[i+1:]...)
			break
		}
	}
	return "Record deleted", nil
}

func (m *mockBackend) DownloadHistory(context.Context) (io.ReadCloser, error) {
	return nil, errors.New("not used in tests")
}

type mockView struct {
	pages []models.HistoryPage
}

func (m *mockView) RenderPage(page models.HistoryPage, _ backend.HistoryQuery) {
	m.pages = append(m.pages, page)
}

func (m *mockView) last() models.HistoryPage {
	return m.pages[len(m.pages)-1]
}

type countingStats struct {
	reconciles int
}

func (c *countingStats) Reconcile(context.Context, string) {
	c.reconciles++
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func someRecords(n int) []models.HistoryRecord {
	records := make([]models.HistoryRecord, n)
	for i := range records {
		records[i] = models.HistoryRecord{
			ID:          int64(i + 1),
			UserQuery:   "question",
			BotResponse: "answer",
			Intent:      "general",
			Confidence:  0.8,
		}
	}
	return records
}

func TestLoadPage(t *testing.T) {
	view := &mockView{}
	p := history.NewPaginator(&mockBackend{records: someRecords(25), pageSize: 10}, view, nil, discardLogger())

	page, err := p.LoadPage(context.Background(), 2, backend.HistoryQuery{})
	if err != nil {
		t.Fatalf("LoadPage() error = %v", err)
	}
	if page.CurrentPage != 2 || page.TotalPages != 3 {
		t.Errorf("page = %d/%d, want 2/3", page.CurrentPage, page.TotalPages)
	}
	if len(page.Records) != 10 {
		t.Errorf("records = %d, want 10", len(page.Records))
	}
	if len(view.pages) != 1 {
		t.Errorf("view rendered %d times, want 1 (replace, not append)", len(view.pages))
	}
}

func TestLoadPageBeyondTotal(t *testing.T) {
	view := &mockView{}
	p := history.NewPaginator(&mockBackend{records: someRecords(5), pageSize: 10}, view, nil, discardLogger())

	page, err := p.LoadPage(context.Background(), 7, backend.HistoryQuery{})
	if err != nil {
		t.Fatalf("LoadPage() beyond total must not be an error, got %v", err)
	}
	if len(page.Records) != 0 {
		t.Errorf("records = %d, want empty no-results page", len(page.Records))
	}
	if len(view.pages) != 1 || len(view.last().Records) != 0 {
		t.Error("the no-results state should still be rendered")
	}
}

func TestLoadPageFetchFailure(t *testing.T) {
	view := &mockView{}
	p := history.NewPaginator(&mockBackend{historyErr: errors.New("backend down")}, view, nil, discardLogger())

	page, err := p.LoadPage(context.Background(), 1, backend.HistoryQuery{})
	if err == nil {
		t.Fatal("LoadPage() should report the fetch failure")
	}
	if len(page.Records) != 0 {
		t.Error("fetch failure should degrade to an empty page")
	}
	if len(view.pages) != 1 {
		t.Error("the degraded empty view should still be rendered")
	}
}

func TestLoaded(t *testing.T) {
	view := &mockView{}
	b := &mockBackend{historyErr: errors.New("backend down")}
	p := history.NewPaginator(b, view, nil, discardLogger())

	if p.Loaded() {
		t.Error("Loaded() before any fetch = true, want false")
	}

	if _, err := p.LoadPage(context.Background(), 1, backend.HistoryQuery{}); err == nil {
		t.Fatal("LoadPage() should report the fetch failure")
	}
	if p.Loaded() {
		t.Error("Loaded() after a failed fetch = true, want false")
	}

	// A backend with no history yet still loads successfully.
	b.historyErr = nil
	if _, err := p.LoadPage(context.Background(), 1, backend.HistoryQuery{}); err != nil {
		t.Fatalf("LoadPage() error = %v", err)
	}
	if !p.Loaded() {
		t.Error("Loaded() after an empty successful fetch = false, want true")
	}
}

func TestDelete(t *testing.T) {
	b := &mockBackend{records: someRecords(3), pageSize: 10}
	view := &mockView{}
	stats := &countingStats{}
	p := history.NewPaginator(b, view, stats, discardLogger())

	if _, err := p.LoadPage(context.Background(), 1, backend.HistoryQuery{}); err != nil {
		t.Fatal(err)
	}

	if _, err := p.Delete(context.Background(), 2, false); !errors.Is(err, history.ErrConfirmationRequired) {
		t.Errorf("unconfirmed Delete() error = %v, want ErrConfirmationRequired", err)
	}
	if len(b.deleted) != 0 {
		t.Fatal("unconfirmed delete reached the backend")
	}

	msg, err := p.Delete(context.Background(), 2, true)
	if err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if msg != "Record deleted" {
		t.Errorf("message = %q", msg)
	}

	for _, r := range view.last().Records {
		if r.ID == 2 {
			t.Error("deleted record still present after reload")
		}
	}
	if len(view.last().Records) != 2 {
		t.Errorf("reloaded records = %d, want 2", len(view.last().Records))
	}
	if stats.reconciles != 1 {
		t.Errorf("summary reconciliations = %d, want exactly 1", stats.reconciles)
	}
}

func TestDeleteBackendFailure(t *testing.T) {
	b := &mockBackend{records: someRecords(3), deleteErr: errors.New("forbidden")}
	stats := &countingStats{}
	p := history.NewPaginator(b, &mockView{}, stats, discardLogger())

	if _, err := p.Delete(context.Background(), 1, true); err == nil {
		t.Fatal("Delete() should surface the backend failure")
	}
	if stats.reconciles != 0 {
		t.Error("a failed delete must not trigger a summary refresh")
	}
}

func TestClearLocal(t *testing.T) {
	b := &mockBackend{records: someRecords(3)}
	view := &mockView{}
	p := history.NewPaginator(b, view, nil, discardLogger())

	if _, err := p.LoadPage(context.Background(), 1, backend.HistoryQuery{}); err != nil {
		t.Fatal(err)
	}

	p.ClearLocal()

	if len(view.last().Records) != 0 {
		t.Error("ClearLocal should render an empty list")
	}
	if len(b.deleted) != 0 {
		t.Error("ClearLocal must not touch the backend")
	}
	if len(b.records) != 3 {
		t.Error("server-side records must be untouched")
	}
}
