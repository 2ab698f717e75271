package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/comigor/interview-bot/internal/config"
	"github.com/comigor/interview-bot/internal/logger"
)

const (
	defaultElevenLabsURL   = "https://api.elevenlabs.io"
	defaultElevenLabsModel = "eleven_multilingual_v2"
	// DefaultVoiceID is the ElevenLabs "Bill" voice.
	DefaultVoiceID = "pqHfZKP75CvOlQylNhV4"
)

// ElevenLabs is a client for the ElevenLabs text-to-speech REST API.
type ElevenLabs struct {
	cfg    config.ElevenLabsConfig
	client *http.Client
}

// NewElevenLabs creates a new ElevenLabs client
func NewElevenLabs(cfg config.ElevenLabsConfig, client *http.Client) *ElevenLabs {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultElevenLabsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ModelID == "" {
		cfg.ModelID = defaultElevenLabsModel
	}
	if client == nil {
		client = &http.Client{}
	}
	return &ElevenLabs{cfg: cfg, client: client}
}

type elevenLabsRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id"`
}

// Synthesize posts text to the voice endpoint and returns the mpeg body.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.cfg.BaseURL, voiceID)

	body, err := json.Marshal(elevenLabsRequest{Text: text, ModelID: e.cfg.ModelID})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", ContentTypeMPEG)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		logger.L.Warn("elevenlabs request failed", "status", resp.StatusCode, "voice", voiceID)
		return nil, fmt.Errorf("%w: unexpected status code %d: %s", ErrSynthesisFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %w", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrSynthesisFailed)
	}
	return audio, nil
}
