package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/comigor/interview-bot/internal/agent"
	"github.com/comigor/interview-bot/internal/config"
	"github.com/comigor/interview-bot/internal/history"
	"github.com/comigor/interview-bot/internal/llm"
	"github.com/comigor/interview-bot/internal/speech"
)

type stubSTT struct{ err error }

func (s stubSTT) Transcribe(_ context.Context, audio []byte, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "Who won the World Series in 2020?", nil
}

type stubLLM struct{ err error }

func (s stubLLM) Complete(context.Context, []history.Message) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "The Dodgers.", nil
}

type stubTTS struct{ err error }

func (s stubTTS) Synthesize(context.Context, string, string) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []byte("ID3-audio"), nil
}

func newTestServer(t *testing.T, mode string, stt stubSTT, l stubLLM, tts stubTTS) (http.Handler, *history.MemoryStore) {
	t.Helper()
	store := history.NewMemoryStore("")
	bot := agent.New(store, stt, l, tts, agent.Options{Mode: mode})
	h := NewHandler(bot, config.ServerConfig{RequestTimeout: 5 * time.Second, MaxUploadBytes: 1 << 20})
	return New(h), store
}

func uploadRequest(t *testing.T, field, filename string, data []byte) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/talk", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestTalk_TextMode(t *testing.T) {
	srv, store := newTestServer(t, config.ModeText, stubSTT{}, stubLLM{}, stubTTS{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "file", "question.mp3", []byte("audio")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Who won the World Series in 2020?", resp.Transcript)
	require.Equal(t, "The Dodgers.", resp.Reply)
	require.Equal(t, 3, resp.Messages)
	require.Equal(t, rec.Header().Get("X-Request-ID"), resp.ID)

	conv, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, conv, 3)
}

func TestTalk_TranscribeMode(t *testing.T) {
	srv, _ := newTestServer(t, config.ModeTranscribe, stubSTT{}, stubLLM{}, stubTTS{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "file", "q.wav", []byte("audio")))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "Speech to text complete.", resp.Message)
	require.Empty(t, resp.Reply)
}

func TestTalk_VoiceModeStreamsAudio(t *testing.T) {
	srv, _ := newTestServer(t, config.ModeVoice, stubSTT{}, stubLLM{}, stubTTS{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "file", "q.mp3", []byte("audio")))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, speech.ContentTypeMPEG, rec.Header().Get("Content-Type"))
	require.Equal(t, "ID3-audio", rec.Body.String())
}

func TestTalk_MissingFile(t *testing.T) {
	srv, _ := newTestServer(t, config.ModeText, stubSTT{}, stubLLM{}, stubTTS{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "audio", "q.mp3", []byte("audio")))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTalk_EmptyFile(t *testing.T) {
	srv, _ := newTestServer(t, config.ModeText, stubSTT{}, stubLLM{}, stubTTS{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, uploadRequest(t, "file", "q.mp3", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTalk_UpstreamFailures(t *testing.T) {
	cases := map[string]struct {
		mode   string
		stt    stubSTT
		llm    stubLLM
		tts    stubTTS
		status int
	}{
		"transcription": {config.ModeText, stubSTT{err: fmt.Errorf("%w: quota", llm.ErrTranscriptionFailed)}, stubLLM{}, stubTTS{}, http.StatusBadGateway},
		"completion":    {config.ModeText, stubSTT{}, stubLLM{err: fmt.Errorf("%w: 500", llm.ErrCompletionFailed)}, stubTTS{}, http.StatusBadGateway},
		"synthesis":     {config.ModeVoice, stubSTT{}, stubLLM{}, stubTTS{err: fmt.Errorf("%w: 401", speech.ErrSynthesisFailed)}, http.StatusBadGateway},
		"timeout":       {config.ModeText, stubSTT{}, stubLLM{err: context.DeadlineExceeded}, stubTTS{}, http.StatusGatewayTimeout},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv, store := newTestServer(t, tc.mode, tc.stt, tc.llm, tc.tts)

			rec := httptest.NewRecorder()
			srv.ServeHTTP(rec, uploadRequest(t, "file", "q.mp3", []byte("audio")))
			require.Equal(t, tc.status, rec.Code)
			require.Contains(t, rec.Body.String(), `"error"`)

			if name != "synthesis" {
				conv, err := store.Load(context.Background())
				require.NoError(t, err)
				require.Len(t, conv, 1)
			}
		})
	}
}

func TestChat(t *testing.T) {
	srv, _ := newTestServer(t, config.ModeText, stubSTT{}, stubLLM{}, stubTTS{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":"hello"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "hello", resp.Transcript)
	require.Equal(t, "The Dodgers.", resp.Reply)
}

func TestChat_TranscribeMode(t *testing.T) {
	srv, store := newTestServer(t, config.ModeTranscribe, stubSTT{}, stubLLM{}, stubTTS{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.NotContains(t, rec.Body.String(), "The Dodgers.")

	conv, err := store.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, conv, 1)
}

func TestChat_EmptyText(t *testing.T) {
	srv, _ := newTestServer(t, config.ModeText, stubSTT{}, stubLLM{}, stubTTS{})

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"text":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryAndHealth(t *testing.T) {
	srv, _ := newTestServer(t, config.ModeText, stubSTT{}, stubLLM{}, stubTTS{})

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var conv history.Conversation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &conv))
	require.Len(t, conv, 1)
	require.Equal(t, history.RoleSystem, conv[0].Role)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","mode":"text"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, statusFor(history.ErrStorageUnavailable))
	require.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("%w: bad json", history.ErrCorruptData)))
	require.Equal(t, http.StatusBadRequest, statusFor(agent.ErrEmptyInput))
	require.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("%w: chat", agent.ErrUnsupportedMode)))
}
