package history

import (
	"context"
	"sync"
)

// MemoryStore keeps the conversation in process memory. It starts empty, so
// the first Load returns the bootstrap conversation.
type MemoryStore struct {
	mu     sync.Mutex
	conv   Conversation
	saved  bool
	prompt string
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore(systemPrompt string) *MemoryStore {
	return &MemoryStore{prompt: systemPrompt}
}

func (s *MemoryStore) Load(_ context.Context) (Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.saved {
		return Bootstrap(s.prompt), nil
	}
	return s.conv.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, conv Conversation) error {
	if err := conv.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conv = conv.Clone()
	if s.conv == nil {
		s.conv = Conversation{}
	}
	s.saved = true
	return nil
}
