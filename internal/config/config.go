package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Bot modes: how far the pipeline runs for each request.
const (
	ModeTranscribe = "transcribe"
	ModeText       = "text"
	ModeVoice      = "voice"
)

// Storage drivers for the conversation history.
const (
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverBolt   = "bolt"
	DriverMemory = "memory"
)

// Speech providers.
const (
	ProviderElevenLabs = "elevenlabs"
	ProviderOpenAI     = "openai"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	ElevenLabs ElevenLabsConfig `mapstructure:"elevenlabs"`
	Speech     SpeechConfig
	History    HistoryConfig
	Bot        BotConfig
	Retry      RetryConfig
	Log        LogConfig
}

// ServerConfig holds the server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
}

// OpenAIConfig holds the credentials and models used for transcription,
// chat completion and the optional OpenAI voice.
type OpenAIConfig struct {
	BaseURL            string `mapstructure:"base_url"`
	APIKey             string `mapstructure:"api_key"`
	Model              string `mapstructure:"model"`
	TranscriptionModel string `mapstructure:"transcription_model"`
	Language           string `mapstructure:"language"`
	SpeechModel        string `mapstructure:"speech_model"`
}

// ElevenLabsConfig holds the ElevenLabs text-to-speech configuration
type ElevenLabsConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	ModelID string `mapstructure:"model_id"`
}

// SpeechConfig selects the synthesis provider and voice.
type SpeechConfig struct {
	Provider string `mapstructure:"provider"`
	VoiceID  string `mapstructure:"voice_id"`
}

// HistoryConfig holds the conversation store configuration
type HistoryConfig struct {
	Driver         string `mapstructure:"driver"`
	Path           string `mapstructure:"path"`
	Create         bool   `mapstructure:"create"`
	ConversationID string `mapstructure:"conversation_id"`
	SystemPrompt   string `mapstructure:"system_prompt"`
}

// BotConfig holds the interaction mode
type BotConfig struct {
	Mode string `mapstructure:"mode"`
}

// RetryConfig holds the upstream retry policy
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay"`
	Multiplier   float64       `mapstructure:"multiplier"`
}

// LogConfig holds the logger configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads the configuration from config.yaml in the working directory,
// or from the file named by CONFIG_PATH. Environment variables override file
// values (history.path -> HISTORY_PATH). A missing config file is not an error.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// ValidMode reports whether mode names a known bot mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeTranscribe, ModeText, ModeVoice:
		return true
	}
	return false
}

// Validate rejects values that would otherwise silently change behavior.
func (c *Config) Validate() error {
	if !ValidMode(c.Bot.Mode) {
		return fmt.Errorf("unknown bot.mode %q (want %s, %s or %s)", c.Bot.Mode, ModeTranscribe, ModeText, ModeVoice)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.max_upload_bytes", 25<<20)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.model", "gpt-3.5-turbo")
	v.SetDefault("openai.transcription_model", "whisper-1")
	v.SetDefault("openai.language", "")
	v.SetDefault("openai.speech_model", "tts-1")

	v.SetDefault("elevenlabs.base_url", "https://api.elevenlabs.io")
	v.SetDefault("elevenlabs.api_key", "")
	v.SetDefault("elevenlabs.model_id", "eleven_multilingual_v2")

	v.SetDefault("speech.provider", ProviderElevenLabs)
	// empty lets each provider use its own default voice
	v.SetDefault("speech.voice_id", "")

	v.SetDefault("history.driver", DriverFile)
	v.SetDefault("history.path", "database.json")
	v.SetDefault("history.create", true)
	v.SetDefault("history.conversation_id", "default")
	v.SetDefault("history.system_prompt", "")

	v.SetDefault("bot.mode", ModeVoice)

	v.SetDefault("retry.max_attempts", 1)
	v.SetDefault("retry.initial_delay", 100*time.Millisecond)
	v.SetDefault("retry.max_delay", 5*time.Second)
	v.SetDefault("retry.multiplier", 2.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
