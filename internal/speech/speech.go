// Package speech turns assistant replies into audio.
package speech

import (
	"context"
	"errors"
)

// ErrSynthesisFailed wraps every text-to-speech failure. A synthesizer never
// returns audio together with an error.
var ErrSynthesisFailed = errors.New("speech synthesis failed")

// ContentTypeMPEG is the media type of the audio every provider returns.
const ContentTypeMPEG = "audio/mpeg"

// Synthesizer converts text to audio bytes in the given voice.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}
