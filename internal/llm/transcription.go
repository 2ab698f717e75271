package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/sashabaranov/go-openai"
)

// ErrTranscriptionFailed wraps every speech-to-text failure.
var ErrTranscriptionFailed = errors.New("transcription failed")

// defaultAudioName is sent when the upload carries no usable file name.
// Whisper infers the encoding from the extension.
const defaultAudioName = "audio.mp3"

// Transcriber converts audio to text with Whisper.
type Transcriber struct {
	client   Client
	model    string
	language string
}

// NewTranscriber returns a Transcriber. An empty language lets Whisper detect it.
func NewTranscriber(client Client, model, language string) *Transcriber {
	if model == "" {
		model = openai.Whisper1
	}
	return &Transcriber{client: client, model: model, language: language}
}

// Transcribe sends audio, named filename, and returns the recognized text.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if len(audio) == 0 {
		return "", fmt.Errorf("%w: empty audio", ErrTranscriptionFailed)
	}

	name := filepath.Base(filename)
	if name == "." || name == "/" || name == "" {
		name = defaultAudioName
	}

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    t.model,
		Reader:   bytes.NewReader(audio),
		FilePath: name,
		Language: t.language,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	return resp.Text, nil
}
