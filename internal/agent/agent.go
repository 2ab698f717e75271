package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/comigor/interview-bot/internal/config"
	"github.com/comigor/interview-bot/internal/history"
	"github.com/comigor/interview-bot/internal/logger"
	"github.com/comigor/interview-bot/internal/retry"
	"github.com/comigor/interview-bot/internal/speech"
)

var (
	// ErrEmptyInput is returned when an interaction carries no audio or text.
	ErrEmptyInput = errors.New("empty input")
	// ErrUnsupportedMode is returned for an interaction the configured mode does not offer.
	ErrUnsupportedMode = errors.New("unsupported in this mode")
)

// Transcriber converts uploaded audio to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// Completer generates the assistant reply for the full message list.
type Completer interface {
	Complete(ctx context.Context, messages []history.Message) (string, error)
}

// Options tune an Agent. The zero value is text mode with a single attempt per call.
type Options struct {
	Mode    string
	VoiceID string
	Retry   retry.Policy
}

// Agent runs one interaction at a time through the conversation: the load,
// completion and save of a turn form a single critical section so concurrent
// requests never overwrite each other's turns.
type Agent struct {
	store   history.Store
	stt     Transcriber
	llm     Completer
	tts     speech.Synthesizer
	mode    string
	voiceID string
	retry   retry.Policy

	// one token; held from history load until save
	turnLock chan struct{}
}

// Upload is an audio file received from a client.
type Upload struct {
	Filename string
	Audio    []byte
}

// Result is the outcome of one interaction. Fields past Transcript are empty
// when the mode stops earlier.
type Result struct {
	ID         string
	Mode       string
	Transcript string
	Reply      string
	Audio      []byte
	Messages   int
}

// New creates an agent. tts may be nil unless opts.Mode is voice.
func New(store history.Store, stt Transcriber, llm Completer, tts speech.Synthesizer, opts Options) *Agent {
	mode := opts.Mode
	if mode == "" {
		mode = config.ModeText
	}
	policy := opts.Retry
	if policy.MaxAttempts < 1 {
		policy = retry.Once
	}
	return &Agent{
		store:    store,
		stt:      stt,
		llm:      llm,
		tts:      tts,
		mode:     mode,
		voiceID:  opts.VoiceID,
		retry:    policy,
		turnLock: make(chan struct{}, 1),
	}
}

// Mode returns the configured interaction mode.
func (a *Agent) Mode() string { return a.mode }

// Talk runs the pipeline for an uploaded audio file.
func (a *Agent) Talk(ctx context.Context, up Upload) (*Result, error) {
	if len(up.Audio) == 0 {
		return nil, fmt.Errorf("%w: no audio", ErrEmptyInput)
	}
	t := &turn{upload: up}
	return a.run(ctx, triggerAudioReceived, t)
}

// Chat runs the pipeline for text input, skipping transcription. Transcribe
// mode has no chat and rejects it with ErrUnsupportedMode.
func (a *Agent) Chat(ctx context.Context, text string) (*Result, error) {
	if a.mode == config.ModeTranscribe {
		return nil, fmt.Errorf("%w: chat in %s mode", ErrUnsupportedMode, a.mode)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: no text", ErrEmptyInput)
	}
	t := &turn{transcript: text}
	return a.run(ctx, triggerTextReceived, t)
}

// History returns the stored conversation.
func (a *Agent) History(ctx context.Context) (history.Conversation, error) {
	return a.store.Load(ctx)
}

// turn carries one interaction's data between pipeline stages.
type turn struct {
	id         string
	upload     Upload
	transcript string
	history    history.Conversation
	reply      string
	audio      []byte
	messages   int
	err        error
	locked     bool
}

func (a *Agent) run(ctx context.Context, start trigger, t *turn) (*Result, error) {
	t.id = RequestID(ctx)
	if t.id == "" {
		t.id = uuid.NewString()
	}
	log := logger.L.With("request_id", t.id, "mode", a.mode)
	begin := time.Now()

	// release the conversation if the pipeline stops between load and save
	defer a.unlock(t)

	fsm := a.newPipeline(t)
	if err := fsm.FireCtx(ctx, start); err != nil {
		return nil, fmt.Errorf("pipeline start: %w", err)
	}

	for {
		st := fsm.MustState().(stage)
		switch st {
		case stageDone:
			log.Info("interaction complete", "elapsed", time.Since(begin), "messages", t.messages)
			return &Result{
				ID:         t.id,
				Mode:       a.mode,
				Transcript: t.transcript,
				Reply:      t.reply,
				Audio:      t.audio,
				Messages:   t.messages,
			}, nil
		case stageFailed:
			log.Error("interaction failed", "elapsed", time.Since(begin), "error", t.err)
			return nil, t.err
		}

		next := a.step(ctx, st, t)
		if err := fsm.FireCtx(ctx, next); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", st, err)
		}
	}
}

// step performs the work of stage st and returns the trigger leading out of it.
func (a *Agent) step(ctx context.Context, st stage, t *turn) trigger {
	fail := func(err error) trigger {
		t.err = err
		return triggerErrorOccurred
	}

	switch st {
	case stageTranscribing:
		err := retry.Do(ctx, a.retry, "transcribe", func(ctx context.Context) error {
			text, err := a.stt.Transcribe(ctx, t.upload.Audio, t.upload.Filename)
			t.transcript = text
			return err
		})
		if err != nil {
			return fail(err)
		}
		logger.L.Info("transcribed", "request_id", t.id, "file", t.upload.Filename, "bytes", len(t.upload.Audio), "text", t.transcript)
		if a.mode == config.ModeTranscribe {
			return triggerFinished
		}
		return triggerTranscribed

	case stageCompleting:
		if err := a.lock(ctx, t); err != nil {
			return fail(err)
		}
		conv, err := a.store.Load(ctx)
		if err != nil {
			return fail(err)
		}
		t.history = conv
		messages := history.BuildRequest(conv, t.transcript)
		err = retry.Do(ctx, a.retry, "complete", func(ctx context.Context) error {
			reply, err := a.llm.Complete(ctx, messages)
			t.reply = reply
			return err
		})
		if err != nil {
			return fail(err)
		}
		logger.L.Info("completion received", "request_id", t.id, "history", len(conv), "reply", t.reply)
		return triggerCompleted

	case stagePersisting:
		user, assistant := history.BuildRecord(t.transcript, t.reply)
		conv := append(t.history.Clone(), user, assistant)
		// the reply already exists; a request timeout must not drop it half way
		err := a.store.Save(context.WithoutCancel(ctx), conv)
		a.unlock(t)
		if err != nil {
			return fail(err)
		}
		t.messages = len(conv)
		if a.mode != config.ModeVoice {
			return triggerFinished
		}
		return triggerPersisted

	case stageSynthesizing:
		if a.tts == nil {
			return fail(fmt.Errorf("%w: no synthesizer configured", speech.ErrSynthesisFailed))
		}
		err := retry.Do(ctx, a.retry, "synthesize", func(ctx context.Context) error {
			audio, err := a.tts.Synthesize(ctx, t.reply, a.voiceID)
			t.audio = audio
			return err
		})
		if err != nil {
			t.audio = nil
			return fail(err)
		}
		return triggerSynthesized
	}

	return fail(fmt.Errorf("no work defined for stage %s", st))
}

func (a *Agent) lock(ctx context.Context, t *turn) error {
	select {
	case a.turnLock <- struct{}{}:
		t.locked = true
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) unlock(t *turn) {
	if t.locked {
		t.locked = false
		<-a.turnLock
	}
}

type requestIDKey struct{}

// WithRequestID attaches the id used to tag an interaction's logs and result.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID returns the id set by WithRequestID, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
