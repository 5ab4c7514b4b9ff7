package models

import (
	"bytes"
	"html/template"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	highlighting "github.com/yuin/goldmark-highlighting"
)

// Sender identifies which side of the conversation authored a message.
type Sender string

const (
	// SenderUser marks a message typed by the person using the chat surface.
	SenderUser Sender = "user"
	// SenderAssistant marks a message produced by the assistant, including
	// locally generated error bubbles.
	SenderAssistant Sender = "assistant"
)

// Message is a single turn in the live transcript. Messages are immutable
// once created; the store only ever appends or bulk-clears them.
type Message struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Sender    Sender    `json:"sender"`
	Timestamp time.Time `json:"timestamp"`
	IsError   bool      `json:"isError"`
}

var markdown = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		highlighting.NewHighlighting(
			highlighting.WithStyle("monokai"),
		),
	),
)

// RenderText converts a message's text from markdown into HTML for the render
// surface. Rendering errors fall back to an escaped plain-text rendition so a
// malformed assistant reply never blanks the bubble.
func RenderText(text string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String())
}
