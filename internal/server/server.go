// Package server provides the HTTP surface of the chat bot.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/comigor/interview-bot/internal/agent"
	"github.com/comigor/interview-bot/internal/config"
	"github.com/comigor/interview-bot/internal/history"
	"github.com/comigor/interview-bot/internal/llm"
	"github.com/comigor/interview-bot/internal/logger"
	"github.com/comigor/interview-bot/internal/speech"
)

// Bot is the interaction surface the handlers drive.
type Bot interface {
	Mode() string
	Talk(ctx context.Context, up agent.Upload) (*agent.Result, error)
	Chat(ctx context.Context, text string) (*agent.Result, error)
	History(ctx context.Context) (history.Conversation, error)
}

// Handler handles HTTP requests.
type Handler struct {
	bot            Bot
	requestTimeout time.Duration
	maxUploadBytes int64
}

// NewHandler creates a new handler.
func NewHandler(bot Bot, cfg config.ServerConfig) *Handler {
	return &Handler{
		bot:            bot,
		requestTimeout: cfg.RequestTimeout,
		maxUploadBytes: cfg.MaxUploadBytes,
	}
}

// New creates and configures the echo server.
func New(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	h.RegisterRoutes(e)
	return e
}

// RegisterRoutes registers the routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/talk", h.Talk)
	e.POST("/chat", h.Chat)
	e.GET("/history", h.History)
	e.GET("/health", h.Health)
}

type chatRequest struct {
	Text string `json:"text"`
}

type chatResponse struct {
	ID         string `json:"id"`
	Message    string `json:"message"`
	Transcript string `json:"transcript"`
	Reply      string `json:"reply,omitempty"`
	Messages   int    `json:"messages,omitempty"`
}

// Talk accepts a multipart audio upload in field "file".
// POST /talk
func (h *Handler) Talk(c echo.Context) error {
	if h.maxUploadBytes > 0 {
		c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, h.maxUploadBytes)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errorJSON(c, http.StatusRequestEntityTooLarge, "upload too large")
		}
		return errorJSON(c, http.StatusBadRequest, "multipart field 'file' is required")
	}
	f, err := fh.Open()
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read upload")
	}
	defer f.Close()

	audio, err := io.ReadAll(f)
	if err != nil {
		return errorJSON(c, http.StatusBadRequest, "failed to read upload")
	}

	ctx, cancel := h.interactionContext(c)
	defer cancel()

	res, err := h.bot.Talk(ctx, agent.Upload{Filename: fh.Filename, Audio: audio})
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, res)
}

// Chat accepts a JSON text message instead of audio.
// POST /chat
func (h *Handler) Chat(c echo.Context) error {
	var req chatRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request body")
	}

	ctx, cancel := h.interactionContext(c)
	defer cancel()

	res, err := h.bot.Chat(ctx, req.Text)
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, res)
}

// History returns the stored conversation.
// GET /history
func (h *Handler) History(c echo.Context) error {
	conv, err := h.bot.History(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, conv)
}

// Health returns health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
		"mode":   h.bot.Mode(),
	})
}

func (h *Handler) interactionContext(c echo.Context) (context.Context, context.CancelFunc) {
	ctx := agent.WithRequestID(c.Request().Context(), c.Response().Header().Get(echo.HeaderXRequestID))
	if h.requestTimeout > 0 {
		return context.WithTimeout(ctx, h.requestTimeout)
	}
	return context.WithCancel(ctx)
}

func (h *Handler) respond(c echo.Context, res *agent.Result) error {
	if res.Mode == config.ModeVoice {
		return c.Blob(http.StatusOK, speech.ContentTypeMPEG, res.Audio)
	}
	msg := "Chat complete."
	if res.Mode == config.ModeTranscribe {
		msg = "Speech to text complete."
	}
	return c.JSON(http.StatusOK, chatResponse{
		ID:         res.ID,
		Message:    msg,
		Transcript: res.Transcript,
		Reply:      res.Reply,
		Messages:   res.Messages,
	})
}

func (h *Handler) fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.L.Error("request failed", "path", c.Path(), "status", status, "error", err)
	} else {
		logger.L.Warn("request rejected", "path", c.Path(), "status", status, "error", err)
	}
	return errorJSON(c, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, agent.ErrEmptyInput),
		errors.Is(err, agent.ErrUnsupportedMode):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, llm.ErrTranscriptionFailed),
		errors.Is(err, llm.ErrCompletionFailed),
		errors.Is(err, speech.ErrSynthesisFailed):
		return http.StatusBadGateway
	default:
		// storage failures and anything unexpected
		return http.StatusInternalServerError
	}
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
