// Package llm adapts the OpenAI API to the chat bot's transcription and
// completion needs.
package llm

import (
	"github.com/comigor/interview-bot/internal/config"
	"github.com/sashabaranov/go-openai"
)

// NewClient creates a new OpenAI client
func NewClient(cfg config.OpenAIConfig) *openai.Client {
	ocfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		ocfg.BaseURL = cfg.BaseURL
	}

	return openai.NewClientWithConfig(ocfg)
}
