// Package chat owns the session and message lifecycle: it orchestrates
// send → gate → transport → receive → store and notifies the render layer of
// every transition. State logic lives here so it can be exercised without a
// rendering environment.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medgrove/medai-web-ui/internal/models"
	"github.com/medgrove/medai-web-ui/internal/safety"
)

// State is the controller's position in the per-message lifecycle.
type State string

const (
	// StateIdle means no exchange is in flight; Send is accepted.
	StateIdle State = "idle"
	// StateAwaitingResponse means one exchange is in flight; Send fails
	// with ErrBusy until it completes.
	StateAwaitingResponse State = "awaiting_response"
)

// Errors returned by Send, Clear, and Save. All of them are handled at the
// operation boundary and converted into user-visible notices; none of them
// terminates the session.
var (
	ErrEmptyMessage         = errors.New("message is empty")
	ErrBusy                 = errors.New("a request is already in flight")
	ErrConfirmationRequired = errors.New("confirmation required")
)

const failureText = "Sorry, there was an error processing your request. Please try again."

// Assistant produces a reply for one exchange request. The backend HTTP
// client implements it, as do the direct Ollama and OpenAI-compatible
// providers.
type Assistant interface {
	Chat(ctx context.Context, req models.ChatRequest) (models.ChatReply, error)
}

// SessionSaver persists transcript snapshots to the durable saved-session
// collection with append semantics.
type SessionSaver interface {
	SaveSession(ctx context.Context, saved models.SavedSession) error
}

// Renderer is the swappable render layer the controller emits intents to.
// Implementations must be safe for calls from request goroutines.
type Renderer interface {
	MessageAppended(msg models.Message)
	ShowTyping(id string)
	ClearTyping(id string)
	Escalate(res safety.Result)
	Notify(level models.NoticeLevel, text string)
	TranscriptCleared(remaining []models.Message)
}

// StatsSyncer reconciles the dashboard summary after an exchange completes.
type StatsSyncer interface {
	Reconcile(ctx context.Context, source string)
}

// Options carries the controller's behavioral knobs.
type Options struct {
	// Greeting, when non-empty, seeds the transcript with an assistant
	// bubble at startup and again after every Clear.
	Greeting string
	// KeepFlaggedInput stores emergency-flagged input locally (it is still
	// never dispatched). Off by default: the original discards the text
	// entirely.
	KeepFlaggedInput bool
}

// pendingRequest is the at-most-one in-flight exchange. The id is echoed
// through the request so replies are matched explicitly instead of by
// temporal adjacency.
type pendingRequest struct {
	id       string
	typingID string
}

// Controller runs the session/message lifecycle for a single session.
type Controller struct {
	session   models.Session
	store     *MessageStore
	gate      safety.Gate
	assistant Assistant
	saver     SessionSaver
	renderer  Renderer
	stats     StatsSyncer

	opts Options
	now  func() time.Time

	logger *slog.Logger

	mu      sync.Mutex
	state   State
	pending *pendingRequest
}

// NewController builds a controller around a fresh message store. saver and
// stats may be nil, which disables saving and summary reconciliation.
func NewController(
	session models.Session,
	assistant Assistant,
	gate safety.Gate,
	saver SessionSaver,
	renderer Renderer,
	stats StatsSyncer,
	logger *slog.Logger,
	opts Options,
) *Controller {
	c := &Controller{
		session:   session,
		store:     NewMessageStore(),
		gate:      gate,
		assistant: assistant,
		saver:     saver,
		renderer:  renderer,
		stats:     stats,
		opts:      opts,
		now:       time.Now,
		logger:    logger.With(slog.String("module", "chat")),
		state:     StateIdle,
	}

	if opts.Greeting != "" {
		c.store.Append(c.newMessage(opts.Greeting, models.SenderAssistant, false))
	}

	return c
}

// Session returns the active session.
func (c *Controller) Session() models.Session {
	return c.session
}

// Store returns the live message store.
func (c *Controller) Store() *MessageStore {
	return c.store
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Send runs one exchange: validate, gate, dispatch, apply the reply. It
// returns ErrEmptyMessage for blank input, a validation error for inputs
// outside the length bounds, and ErrBusy while another exchange is in
// flight. In all three cases the transcript is untouched and the assistant
// is never contacted. Transport failures are not returned: they are
// converted into an error bubble plus a notice, and the controller is Idle
// again when Send returns.
func (c *Controller) Send(ctx context.Context, raw string) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ErrEmptyMessage
	}
	if err := safety.ValidateQuery(text); err != nil {
		return err
	}

	if res := c.gate.Classify(text); res.Emergency {
		c.intercept(text, res)
		return nil
	}

	reqID := uuid.New().String()

	c.mu.Lock()
	if c.pending != nil {
		c.mu.Unlock()
		return ErrBusy
	}
	c.state = StateAwaitingResponse
	c.pending = &pendingRequest{id: reqID, typingID: "typing-" + reqID}
	typingID := c.pending.typingID
	c.mu.Unlock()

	userMsg := c.newMessage(text, models.SenderUser, false)
	c.store.Append(userMsg)
	c.renderer.MessageAppended(userMsg)
	c.renderer.ShowTyping(typingID)

	reply, err := c.assistant.Chat(ctx, models.ChatRequest{
		Message:   text,
		SessionID: c.session.ID,
		RequestID: reqID,
	})
	c.finish(ctx, reqID, reply, err)

	return nil
}

// intercept handles emergency-flagged input: escalate, never dispatch. The
// flagged text is only kept locally when configured to.
func (c *Controller) intercept(text string, res safety.Result) {
	c.logger.Info("Emergency input intercepted",
		slog.String("keyword", res.Keyword),
		slog.String("level", string(res.Level)))

	if c.opts.KeepFlaggedInput {
		msg := c.newMessage(text, models.SenderUser, false)
		c.store.Append(msg)
		c.renderer.MessageAppended(msg)
	}

	c.renderer.Escalate(res)
}

// finish applies the outcome of the exchange identified by reqID and returns
// the controller to Idle. A reply whose id no longer matches the pending
// request is dropped, which keeps a stale continuation from corrupting the
// transcript.
func (c *Controller) finish(ctx context.Context, reqID string, reply models.ChatReply, sendErr error) {
	c.mu.Lock()
	if c.pending == nil || c.pending.id != reqID {
		c.mu.Unlock()
		c.logger.Warn("Dropping reply for stale request", slog.String("requestID", reqID))
		return
	}
	typingID := c.pending.typingID
	c.pending = nil
	c.state = StateIdle
	c.mu.Unlock()

	c.renderer.ClearTyping(typingID)

	if sendErr != nil {
		c.logger.Error("Exchange failed",
			slog.String("requestID", reqID),
			slog.String(errLoggerKey, sendErr.Error()))

		errMsg := c.newMessage(failureText, models.SenderAssistant, true)
		c.store.Append(errMsg)
		c.renderer.MessageAppended(errMsg)
		c.renderer.Notify(models.NoticeError, "Failed to get a response. Please check your connection.")
		return
	}

	// Emergency detection takes priority over normal error reporting.
	if reply.Emergency {
		c.renderer.Escalate(safety.Result{Emergency: true, Level: safety.LevelEmergency})
	}

	if reply.Err != "" {
		errMsg := c.newMessage("Error: "+reply.Err, models.SenderAssistant, true)
		c.store.Append(errMsg)
		c.renderer.MessageAppended(errMsg)
		c.renderer.Notify(models.NoticeError, reply.Err)
		return
	}

	if reply.Response != "" {
		aiMsg := c.newMessage(reply.Response, models.SenderAssistant, false)
		c.store.Append(aiMsg)
		c.renderer.MessageAppended(aiMsg)

		if c.stats != nil {
			c.stats.Reconcile(ctx, "chat-response")
		}
	}
}

// Clear empties the transcript after an explicit confirmation, preserving
// the greeting bubble when one is configured. An in-flight request is
// abandoned: its typing indicator is removed here and its reply, whenever it
// arrives, no longer matches a pending id and is dropped by finish.
func (c *Controller) Clear(confirm bool) error {
	if !confirm {
		return ErrConfirmationRequired
	}

	c.mu.Lock()
	var typingID string
	if c.pending != nil {
		typingID = c.pending.typingID
		c.pending = nil
	}
	c.state = StateIdle
	c.mu.Unlock()

	if typingID != "" {
		c.renderer.ClearTyping(typingID)
	}

	var kept []models.Message
	if c.opts.Greeting != "" {
		kept = append(kept, c.newMessage(c.opts.Greeting, models.SenderAssistant, false))
	}
	c.store.Clear(kept...)
	c.renderer.TranscriptCleared(c.store.Messages())

	c.logger.Info("Transcript cleared", slog.String("sessionID", c.session.ID))
	return nil
}

// Save appends the current transcript to the durable saved-session
// collection. A persistence failure is reported to the caller but is never
// fatal to the live session.
func (c *Controller) Save(ctx context.Context) error {
	if c.saver == nil {
		return errors.New("saving is not configured")
	}

	saved := models.SavedSession{
		SessionID: c.session.ID,
		Messages:  c.store.Messages(),
		Timestamp: c.now(),
	}
	if err := c.saver.SaveSession(ctx, saved); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.logger.Info("Session saved",
		slog.String("sessionID", c.session.ID),
		slog.Int("messages", len(saved.Messages)))
	return nil
}

func (c *Controller) newMessage(text string, sender models.Sender, isError bool) models.Message {
	return models.Message{
		ID:        "msg-" + uuid.New().String(),
		Text:      text,
		Sender:    sender,
		Timestamp: c.now(),
		IsError:   isError,
	}
}

const errLoggerKey = "err"
