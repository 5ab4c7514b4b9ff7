package chat

import (
	"sync"

	"github.com/medgrove/medai-web-ui/internal/models"
)

// MessageStore is the ordered, append-only record of the active session's
// transcript. Insertion order is chronological order. Individual messages are
// never deleted; the only mutation besides Append is a bulk Clear.
//
// The controller is the store's sole writer, but handlers read it from
// request goroutines, so access is guarded.
type MessageStore struct {
	mu       sync.RWMutex
	messages []models.Message
}

// NewMessageStore creates an empty store.
func NewMessageStore() *MessageStore {
	return &MessageStore{}
}

// Append adds a message to the end of the transcript.
func (s *MessageStore) Append(msg models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

// Messages returns a snapshot copy of the transcript.
func (s *MessageStore) Messages() []models.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len reports the number of messages in the transcript.
func (s *MessageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clear empties the transcript, re-seeding it with the given messages (used
// to preserve a greeting bubble across clears).
func (s *MessageStore) Clear(keep ...models.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append([]models.Message(nil), keep...)
}
