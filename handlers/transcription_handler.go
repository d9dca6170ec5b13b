package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/upb/sessiongate/internal/observability"
	"github.com/upb/sessiongate/transcription"
	"github.com/upb/sessiongate/utils"
	"go.uber.org/zap"
)

// multipartOverhead is the allowance for form boundaries and headers on top of the audio bytes
const multipartOverhead = 1 << 20

// Transcriber converts audio to text
type Transcriber interface {
	Configured() bool
	Transcribe(ctx context.Context, filename string, audio io.Reader) (string, error)
}

// TranscriptionResult is the body of every /api/transcribe reply
type TranscriptionResult struct {
	Success string `json:"success"`
	Text    string `json:"text,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TranscriptionHandler relays uploaded audio to the transcription API
type TranscriptionHandler struct {
	transcriber    Transcriber
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewTranscriptionHandler creates a new TranscriptionHandler
func NewTranscriptionHandler(transcriber Transcriber, maxUploadBytes int64, logger *zap.Logger) *TranscriptionHandler {
	return &TranscriptionHandler{
		transcriber:    transcriber,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// HandleTranscribe handles POST /api/transcribe with multipart field "audio"
func (h *TranscriptionHandler) HandleTranscribe(w http.ResponseWriter, r *http.Request) {
	logger := observability.RequestLogger(h.logger, r)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	file, header, err := r.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.fail(w, http.StatusRequestEntityTooLarge, "Audio file too large")
			return
		}
		h.fail(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	defer file.Close()

	if header.Size == 0 {
		h.fail(w, http.StatusBadRequest, "No audio file provided")
		return
	}
	if header.Size > h.maxUploadBytes {
		logger.Warn("audio file too large", zap.Int64("size", header.Size))
		h.fail(w, http.StatusRequestEntityTooLarge, "Audio file too large")
		return
	}
	if !h.transcriber.Configured() {
		logger.Error("transcription API key not configured")
		h.fail(w, http.StatusInternalServerError, "OpenAI API key not configured")
		return
	}

	logger.Info("processing audio file",
		zap.String("filename", header.Filename),
		zap.Int64("size", header.Size))

	text, err := h.transcriber.Transcribe(r.Context(), header.Filename, file)
	if err != nil {
		var upstream *transcription.UpstreamError
		if errors.As(err, &upstream) {
			h.fail(w, upstream.ClientStatus(), upstream.ClientMessage())
			return
		}
		logger.Error("transcription failed", zap.Error(err))
		h.fail(w, http.StatusInternalServerError, "Transcription failed")
		return
	}

	_ = utils.WriteJSON(w, http.StatusOK, TranscriptionResult{Success: "true", Text: text})
}

// HandleHealth handles GET /api/transcribe/health
func (h *TranscriptionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "healthy",
		"service":           "transcription",
		"openai_configured": h.transcriber.Configured(),
	})
}

func (h *TranscriptionHandler) fail(w http.ResponseWriter, status int, message string) {
	_ = utils.WriteJSON(w, status, TranscriptionResult{Success: "false", Error: message})
}
