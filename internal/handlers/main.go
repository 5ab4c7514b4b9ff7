// Package handlers wires the session core to the browser render surface.
// The handlers translate HTTP requests into controller operations, and the
// Main type doubles as the render layer: it implements the renderer
// interfaces the core packages declare, turning every intent into a
// template render pushed over Server-Sent Events.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tmaxmax/go-sse"

	medaiwebui "github.com/medgrove/medai-web-ui"
	"github.com/medgrove/medai-web-ui/internal/backend"
	"github.com/medgrove/medai-web-ui/internal/chat"
	"github.com/medgrove/medai-web-ui/internal/history"
	"github.com/medgrove/medai-web-ui/internal/models"
	"github.com/medgrove/medai-web-ui/internal/safety"
	"github.com/medgrove/medai-web-ui/internal/stats"
)

// SSE topics for the two surfaces.
const (
	chatSSETopic      = "chat"
	dashboardSSETopic = "dashboard"
)

// SSE event types for real-time updates.
var (
	messageSSEType     = sse.Type("message")
	typingSSEType      = sse.Type("typing")
	clearTypingSSEType = sse.Type("clearTyping")
	escalationSSEType  = sse.Type("escalation")
	noticeSSEType      = sse.Type("notice")
	transcriptSSEType  = sse.Type("transcript")
	historySSEType     = sse.Type("history")
	summarySSEType     = sse.Type("summary")
)

const errLoggerKey = "err"

// Uploader forwards file attachments to the backend.
type Uploader interface {
	UploadFile(ctx context.Context, filename string, content io.Reader, userID string) (json.RawMessage, error)
}

// Main handles the core functionality of the chat and dashboard surfaces,
// managing server-sent events, HTML templates, and interactions between the
// session controller, history paginator, and stats synchronizer.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	controller *chat.Controller
	paginator  *history.Paginator
	stats      *stats.Synchronizer
	uploader   Uploader

	logger *slog.Logger
}

// NewMain builds the render layer and the session core around it. The
// assistant is either the backend HTTP client or a direct provider; client
// serves the dashboard surfaces and the upload endpoint. saver may be nil to
// disable session saving.
func NewMain(
	session models.Session,
	assistant chat.Assistant,
	gate safety.Gate,
	saver chat.SessionSaver,
	client *backend.Client,
	logger *slog.Logger,
	opts chat.Options,
) (*Main, error) {
	tmpl, err := template.ParseFS(
		medaiwebui.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return nil, err
	}

	m := &Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, chatSSETopic, dashboardSSETopic},
				}, true
			},
		},
		templates: tmpl,
		uploader:  client,
		logger:    logger.With(slog.String("module", "handlers")),
	}

	m.stats = stats.NewSynchronizer(client, m, logger)
	m.paginator = history.NewPaginator(client, m, m.stats, logger)
	m.controller = chat.NewController(session, assistant, gate, saver, m, m.stats, logger, opts)

	return m, nil
}

// Controller exposes the session controller, mainly for wiring and tests.
func (m *Main) Controller() *chat.Controller {
	return m.controller
}

// Paginator exposes the history paginator.
func (m *Main) Paginator() *history.Paginator {
	return m.paginator
}

// Stats exposes the stats synchronizer.
func (m *Main) Stats() *stats.Synchronizer {
	return m.stats
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close
// message to all connected clients and waits up to 5 seconds for connections
// to terminate.
func (m *Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeSession")}
	// The SSE spec requires data on every event.
	e.AppendData("bye")

	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// messageView is the template payload for one transcript bubble.
type messageView struct {
	ID        string
	Sender    string
	HTML      template.HTML
	Timestamp time.Time
	IsError   bool
}

func viewOf(msg models.Message) messageView {
	return messageView{
		ID:        msg.ID,
		Sender:    string(msg.Sender),
		HTML:      models.RenderText(msg.Text),
		Timestamp: msg.Timestamp,
		IsError:   msg.IsError,
	}
}

func (m *Main) publish(topic string, eventType sse.EventType, data string) {
	msg := sse.Message{Type: eventType}
	msg.AppendData(data)
	if err := m.sseSrv.Publish(&msg, topic); err != nil {
		m.logger.Error("Failed to publish SSE event",
			slog.String("topic", topic),
			slog.String(errLoggerKey, err.Error()))
	}
}

func (m *Main) renderPartial(name string, data any) (string, bool) {
	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, name, data); err != nil {
		m.logger.Error("Failed to execute template",
			slog.String("template", name),
			slog.String(errLoggerKey, err.Error()))
		return "", false
	}
	return sb.String(), true
}

// MessageAppended implements chat.Renderer by pushing the rendered bubble to
// the chat surface.
func (m *Main) MessageAppended(msg models.Message) {
	if html, ok := m.renderPartial("message", viewOf(msg)); ok {
		m.publish(chatSSETopic, messageSSEType, html)
	}
}

// ShowTyping implements chat.Renderer.
func (m *Main) ShowTyping(id string) {
	if html, ok := m.renderPartial("typing_indicator", struct{ ID string }{id}); ok {
		m.publish(chatSSETopic, typingSSEType, html)
	}
}

// ClearTyping implements chat.Renderer. The payload is the placeholder id to
// remove; the browser side deletes the element.
func (m *Main) ClearTyping(id string) {
	m.publish(chatSSETopic, clearTypingSSEType, id)
}

// Escalate implements chat.Renderer by pushing the emergency hand-off view.
func (m *Main) Escalate(res safety.Result) {
	if html, ok := m.renderPartial("escalation", struct{ Level string }{string(res.Level)}); ok {
		m.publish(chatSSETopic, escalationSSEType, html)
	}
}

// Notify implements chat.Renderer with a transient banner notice.
func (m *Main) Notify(level models.NoticeLevel, text string) {
	payload, err := json.Marshal(struct {
		Level string `json:"level"`
		Text  string `json:"text"`
	}{string(level), text})
	if err != nil {
		return
	}
	m.publish(chatSSETopic, noticeSSEType, string(payload))
}

// TranscriptCleared implements chat.Renderer by re-rendering the whole
// chatbox with whatever survived the clear.
func (m *Main) TranscriptCleared(remaining []models.Message) {
	views := make([]messageView, len(remaining))
	for i, msg := range remaining {
		views[i] = viewOf(msg)
	}
	if html, ok := m.renderPartial("chatbox", struct{ Messages []messageView }{views}); ok {
		m.publish(chatSSETopic, transcriptSSEType, html)
	}
}

// RenderPage implements history.View by pushing the record list and its
// pagination control to the dashboard surface.
func (m *Main) RenderPage(page models.HistoryPage, q backend.HistoryQuery) {
	if html, ok := m.renderPartial("history_list", historyViewOf(page, q)); ok {
		m.publish(dashboardSSETopic, historySSEType, html)
	}
}

// SummaryUpdated implements stats.Listener.
func (m *Main) SummaryUpdated(summary models.Summary, firstArrival bool) {
	if html, ok := m.renderPartial("summary", summaryViewOf(summary, firstArrival)); ok {
		m.publish(dashboardSSETopic, summarySSEType, html)
	}
}

type summaryView struct {
	TotalChats       int
	AvgConfidence    string
	MostCommonIntent string
	LastActive       string
	// Animate triggers the count-up effect on the first real data arrival.
	Animate bool
}

func summaryViewOf(summary models.Summary, animate bool) summaryView {
	return summaryView{
		TotalChats:       summary.TotalChats,
		AvgConfidence:    fmt.Sprintf("%.1f%%", summary.AvgConfidence),
		MostCommonIntent: summary.MostCommonIntent,
		LastActive:       summary.LastActive,
		Animate:          animate,
	}
}

type historyView struct {
	Records     []models.HistoryRecord
	CurrentPage int
	TotalPages  int
	Pages       []int
	Search      string
	Filter      string
}

func historyViewOf(page models.HistoryPage, q backend.HistoryQuery) historyView {
	// At most five page numbers, centered on the current page.
	const maxVisible = 5
	start := page.CurrentPage - maxVisible/2
	if start < 1 {
		start = 1
	}
	end := start + maxVisible - 1
	if end > page.TotalPages {
		end = page.TotalPages
		if end-maxVisible+1 > 0 {
			start = end - maxVisible + 1
		} else {
			start = 1
		}
	}

	var pages []int
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}

	return historyView{
		Records:     page.Records,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		Pages:       pages,
		Search:      q.Search,
		Filter:      q.Filter,
	}
}
