// Package history persists the chat conversation and assembles the message
// lists exchanged with the completion API.
//
// Every backend stores the whole conversation as one snapshot: Save replaces
// what was there, Load returns it in order. An empty backing resource loads
// as a fresh conversation holding only the bootstrap system message.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable is returned when the backing resource cannot be
	// opened, read or written.
	ErrStorageUnavailable = errors.New("conversation storage unavailable")
	// ErrCorruptData is returned when stored content is not a valid sequence
	// of messages.
	ErrCorruptData = errors.New("conversation data corrupt")
)

// DefaultSystemPrompt is the persona used when none is configured.
const DefaultSystemPrompt = "You are interviewing the user for a " +
	"front-end React developer position.  Ask short questions that " +
	"are relevant to a junior level developer.  Your name is Greg.  " +
	"The user is Marie.  Keep responses under 30 words and be " +
	"funny sometimes."

// Store loads and saves the full conversation.
type Store interface {
	Load(ctx context.Context) (Conversation, error)
	Save(ctx context.Context, conv Conversation) error
}

// Bootstrap returns a new conversation holding only the system message.
// An empty prompt falls back to DefaultSystemPrompt.
func Bootstrap(prompt string) Conversation {
	if prompt == "" {
		prompt = DefaultSystemPrompt
	}
	return Conversation{{Role: RoleSystem, Content: prompt}}
}

// decode parses a serialized conversation. Empty input is a new conversation.
func decode(data []byte, prompt string) (Conversation, error) {
	if len(data) == 0 {
		return Bootstrap(prompt), nil
	}
	var conv Conversation
	if err := json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptData, err)
	}
	if conv == nil {
		// literal "null"
		return nil, fmt.Errorf("%w: not a message array", ErrCorruptData)
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return conv, nil
}

func encode(conv Conversation) ([]byte, error) {
	if conv == nil {
		conv = Conversation{}
	}
	if err := conv.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(conv)
}
