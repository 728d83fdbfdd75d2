package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/emirlan/inboxlm/internal/message"
	"github.com/emirlan/inboxlm/internal/store"
)

// fieldError describes one invalid request field.
type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func writeValidationError(w http.ResponseWriter, errs []fieldError) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"message": "Validation error",
		"errors":  errs,
	})
}

// handleIngest handles GET /api/{platform}/messages. It triggers ingestion
// for the platform and returns its full stored history.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	platform, ok := message.ParsePlatform(chi.URLParam(r, "platform"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown platform")
		return
	}

	msgs, err := s.pipeline.Ingest(r.Context(), platform)
	if err != nil {
		slog.Error("Ingestion failed", "platform", platform, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch "+string(platform)+" messages")
		return
	}

	if msgs == nil {
		msgs = []store.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

type composeRequest struct {
	Content string `json:"content"`
	Sender  string `json:"sender"`
}

// handleCompose handles POST /api/slack/messages. Messages sent by the
// operator ("self") skip annotation; everything else runs the full
// annotation path. The content is forwarded to the live Slack channel.
func (s *Server) handleCompose(w http.ResponseWriter, r *http.Request) {
	var req composeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, []fieldError{{Field: "body", Message: "invalid JSON body"}})
		return
	}

	if strings.TrimSpace(req.Content) == "" {
		writeValidationError(w, []fieldError{{Field: "content", Message: "content is required"}})
		return
	}

	saved, err := s.pipeline.Compose(r.Context(), req.Content, req.Sender)
	if err != nil {
		slog.Error("Failed to process composed message", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to process message")
		return
	}

	writeJSON(w, http.StatusOK, saved)
}

// handleDigest handles GET /api/digest over the trailing 24-hour window.
func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	text, err := s.digest.BuildDaily(r.Context())
	if err != nil {
		slog.Error("Digest failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to generate digest")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"digest": text})
}

// --- AI model registry ---

func (s *Server) handleListAiModels(w http.ResponseWriter, r *http.Request) {
	models, err := s.store.ActiveAiModels(r.Context())
	if err != nil {
		slog.Error("Failed to list ai models", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to fetch AI models")
		return
	}
	if models == nil {
		models = []store.AiModel{}
	}
	writeJSON(w, http.StatusOK, models)
}

type createAiModelRequest struct {
	Name     string `json:"name"`
	Endpoint string `json:"endpoint"`
	APIKey   string `json:"apiKey"`
	Active   bool   `json:"active"`
}

func (s *Server) handleCreateAiModel(w http.ResponseWriter, r *http.Request) {
	var req createAiModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, []fieldError{{Field: "body", Message: "invalid JSON body"}})
		return
	}

	var errs []fieldError
	if strings.TrimSpace(req.Name) == "" {
		errs = append(errs, fieldError{Field: "name", Message: "name is required"})
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		errs = append(errs, fieldError{Field: "endpoint", Message: "endpoint is required"})
	}
	if strings.TrimSpace(req.APIKey) == "" {
		errs = append(errs, fieldError{Field: "apiKey", Message: "apiKey is required"})
	}
	if len(errs) > 0 {
		writeValidationError(w, errs)
		return
	}

	model := &store.AiModel{
		Name:     req.Name,
		Endpoint: req.Endpoint,
		APIKey:   req.APIKey,
		Active:   req.Active,
	}
	if err := s.store.CreateAiModel(r.Context(), model); err != nil {
		slog.Error("Failed to create ai model", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create AI model")
		return
	}

	writeJSON(w, http.StatusOK, model)
}

type updateAiModelRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleUpdateAiModel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeValidationError(w, []fieldError{{Field: "id", Message: "id must be an integer"}})
		return
	}

	var req updateAiModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationError(w, []fieldError{{Field: "body", Message: "invalid JSON body"}})
		return
	}

	if err := s.store.SetAiModelActive(r.Context(), uint(id), req.Active); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "AI model not found")
			return
		}
		slog.Error("Failed to update ai model", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update AI model")
		return
	}

	model, err := s.store.AiModelByID(r.Context(), uint(id))
	if err != nil {
		slog.Error("Failed to reload ai model", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to update AI model")
		return
	}

	writeJSON(w, http.StatusOK, model)
}
