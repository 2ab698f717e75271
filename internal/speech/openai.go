package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// SpeechClient is the subset of openai.Client used for speech.
type SpeechClient interface {
	CreateSpeech(ctx context.Context, req openai.CreateSpeechRequest) (openai.RawResponse, error)
}

// OpenAISpeech synthesizes mp3 audio with the OpenAI speech endpoint.
type OpenAISpeech struct {
	client SpeechClient
	model  string
}

// NewOpenAISpeech returns a synthesizer using model (tts-1 when empty).
func NewOpenAISpeech(client SpeechClient, model string) *OpenAISpeech {
	if model == "" {
		model = string(openai.TTSModel1)
	}
	return &OpenAISpeech{client: client, model: model}
}

// Synthesize reads the whole mp3 stream before returning.
func (o *OpenAISpeech) Synthesize(ctx context.Context, text, voiceID string) ([]byte, error) {
	if voiceID == "" {
		voiceID = string(openai.VoiceAlloy)
	}
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.model),
		Input:          text,
		Voice:          openai.SpeechVoice(voiceID),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSynthesisFailed, err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: reading audio: %w", ErrSynthesisFailed, err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("%w: empty audio", ErrSynthesisFailed)
	}
	return audio, nil
}
