package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/medgrove/medai-web-ui/internal/chat"
	"github.com/medgrove/medai-web-ui/internal/models"
	"github.com/medgrove/medai-web-ui/internal/safety"
)

type chatPageData struct {
	SessionID string
	Messages  []messageView
}

// HandleHome renders the chat page with the current transcript. The page
// subscribes to the SSE stream for everything that happens afterwards.
func (m *Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	msgs := m.controller.Store().Messages()
	views := make([]messageView, len(msgs))
	for i, msg := range msgs {
		views[i] = viewOf(msg)
	}

	data := chatPageData{
		SessionID: m.controller.Session().ID,
		Messages:  views,
	}

	if err := m.templates.ExecuteTemplate(w, "chat.html", data); err != nil {
		m.logger.Error("Failed to execute chat template", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// HandleChat accepts a user message through form data and runs the full
// send cycle. The transcript updates (user bubble, typing placeholder, reply
// or error bubble) arrive over SSE; the HTTP response only reports whether
// the send was accepted.
func (m *Main) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	msg := r.FormValue("message")

	err := m.controller.Send(r.Context(), msg)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, chat.ErrEmptyMessage):
		http.Error(w, "Message is required", http.StatusBadRequest)
	case errors.Is(err, safety.ErrQueryTooShort), errors.Is(err, safety.ErrQueryTooLong):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, chat.ErrBusy):
		http.Error(w, "A reply is already on the way", http.StatusConflict)
	default:
		// Transport failures are already surfaced in the transcript as an
		// error bubble, so the send itself still counts as accepted.
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleClear resets the transcript. It requires an explicit confirm=true
// form field, mirroring the confirmation dialog in the browser.
func (m *Main) HandleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	confirm := r.FormValue("confirm") == "true"
	if err := m.controller.Clear(confirm); err != nil {
		http.Error(w, "Confirmation required", http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleSave appends the current transcript to the saved-session collection.
func (m *Main) HandleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := m.controller.Save(r.Context()); err != nil {
		m.Notify(models.NoticeError, "Failed to save chat")
		http.Error(w, "Failed to save chat", http.StatusInternalServerError)
		return
	}

	m.Notify(models.NoticeSuccess, "Chat saved successfully!")
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpload forwards a multipart file attachment to the backend. The
// session id travels along as the user id so the backend can associate the
// document with the conversation.
func (m *Main) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	res, err := m.uploader.UploadFile(r.Context(), header.Filename, file, m.controller.Session().ID)
	if err != nil {
		m.logger.Error("Failed to upload file",
			slog.String("filename", header.Filename),
			slog.String(errLoggerKey, err.Error()))
		m.Notify(models.NoticeError, "Upload failed")
		http.Error(w, "Upload failed", http.StatusBadGateway)
		return
	}

	m.Notify(models.NoticeSuccess, "File uploaded")
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(res)
}

// HandleSSE hands the connection to the SSE server, which keeps it open and
// replays events per topic subscription.
func (m *Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}
