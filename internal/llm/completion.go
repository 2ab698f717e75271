package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/interview-bot/internal/history"
	"github.com/comigor/interview-bot/internal/logger"
)

// ErrCompletionFailed wraps every upstream chat completion failure.
var ErrCompletionFailed = errors.New("completion failed")

// Completer generates the assistant reply for a message list.
type Completer struct {
	client Client
	model  string
}

// NewCompleter returns a Completer using model for every request.
func NewCompleter(client Client, model string) *Completer {
	if model == "" {
		model = openai.GPT3Dot5Turbo
	}
	return &Completer{client: client, model: model}
}

// Complete sends the full message list and returns the first choice's content.
// The API keeps no memory between calls, so messages must carry the whole history.
func (c *Completer) Complete(ctx context.Context, messages []history.Message) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAI(messages),
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", ErrCompletionFailed)
	}

	msg := resp.Choices[0].Message
	logger.L.Debug("completion received",
		"model", resp.Model,
		"finish_reason", resp.Choices[0].FinishReason,
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens,
	)
	return msg.Content, nil
}

func toOpenAI(messages []history.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return out
}
