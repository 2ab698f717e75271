package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/interview-bot/internal/agent"
	"github.com/comigor/interview-bot/internal/config"
	"github.com/comigor/interview-bot/internal/history"
	"github.com/comigor/interview-bot/internal/llm"
	"github.com/comigor/interview-bot/internal/logger"
	"github.com/comigor/interview-bot/internal/retry"
	"github.com/comigor/interview-bot/internal/server"
	"github.com/comigor/interview-bot/internal/speech"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.SetFormat(cfg.Log.Format, os.Stdout)
	logger.SetLevel(cfg.Log.Level)

	if cfg.OpenAI.APIKey == "" {
		logger.L.Warn("openai.api_key is empty; transcription and completion will fail")
	}

	store, closeStore, err := openStore(cfg.History)
	if err != nil {
		logger.L.Error("failed to open history store", "driver", cfg.History.Driver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	// Initialize OpenAI-backed adapters
	openaiClient := llm.NewClient(cfg.OpenAI)
	transcriber := llm.NewTranscriber(openaiClient, cfg.OpenAI.TranscriptionModel, cfg.OpenAI.Language)
	completer := llm.NewCompleter(openaiClient, cfg.OpenAI.Model)

	synthesizer, err := newSynthesizer(cfg, openaiClient)
	if err != nil {
		logger.L.Error("failed to set up speech synthesis", "provider", cfg.Speech.Provider, "error", err)
		os.Exit(1)
	}

	bot := agent.New(store, transcriber, completer, synthesizer, agent.Options{
		Mode:    cfg.Bot.Mode,
		VoiceID: cfg.Speech.VoiceID,
		Retry:   retry.FromConfig(cfg.Retry),
	})

	e := server.New(server.NewHandler(bot, cfg.Server))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start server
	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	go func() {
		logger.L.Info("starting server", "address", serverAddr, "mode", cfg.Bot.Mode, "history", cfg.History.Driver)
		if err := e.Start(serverAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.L.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.L.Warn("graceful shutdown failed", "error", err)
	}
}

func openStore(cfg config.HistoryConfig) (history.Store, func(), error) {
	noop := func() {}
	switch cfg.Driver {
	case config.DriverFile, "":
		s := history.NewFileStore(cfg.Path, cfg.SystemPrompt)
		if cfg.Create {
			if err := s.Init(); err != nil {
				return nil, noop, err
			}
		}
		return s, noop, nil
	case config.DriverSQLite:
		s, err := history.OpenSQLite(cfg.Path, cfg.ConversationID, cfg.SystemPrompt)
		if err != nil {
			return nil, noop, err
		}
		return s, closer(s), nil
	case config.DriverBolt:
		s, err := history.OpenBolt(cfg.Path, cfg.ConversationID, cfg.SystemPrompt)
		if err != nil {
			return nil, noop, err
		}
		return s, closer(s), nil
	case config.DriverMemory:
		return history.NewMemoryStore(cfg.SystemPrompt), noop, nil
	default:
		return nil, noop, fmt.Errorf("unknown history driver %q", cfg.Driver)
	}
}

// newSynthesizer returns nil outside voice mode. An empty speech.voice_id is
// passed through so each provider falls back to its own default voice.
func newSynthesizer(cfg *config.Config, client *openai.Client) (speech.Synthesizer, error) {
	if cfg.Bot.Mode != config.ModeVoice {
		return nil, nil
	}
	switch cfg.Speech.Provider {
	case config.ProviderOpenAI:
		return speech.NewOpenAISpeech(client, cfg.OpenAI.SpeechModel), nil
	case config.ProviderElevenLabs:
		if cfg.ElevenLabs.APIKey == "" {
			logger.L.Warn("elevenlabs.api_key is empty; speech synthesis will fail")
		}
		return speech.NewElevenLabs(cfg.ElevenLabs, &http.Client{}), nil
	default:
		return nil, fmt.Errorf("unsupported speech provider %q", cfg.Speech.Provider)
	}
}

func closer(c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			logger.L.Warn("closing history store", "error", err)
		}
	}
}
