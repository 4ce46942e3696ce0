package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/erazemk/shramba/internal/assistant"
)

// AssistantHandler handles the inventory assistant endpoints.
type AssistantHandler struct {
	Service *assistant.Service
}

type askRequest struct {
	Question string `json:"question"`
}

type analyzeImageRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type"`
}

// assistantError maps assistant errors to responses.
func assistantError(w http.ResponseWriter, err error, action string) {
	var quotaErr *assistant.QuotaExceededError
	var validationErr *assistant.ValidationError
	switch {
	case errors.As(err, &quotaErr):
		jsonResponse(w, http.StatusTooManyRequests, map[string]any{
			"error":  quotaErr.Error(),
			"status": quotaErr.Status,
		})
	case errors.As(err, &validationErr):
		jsonError(w, http.StatusBadRequest, validationErr.Error())
	case errors.Is(err, assistant.ErrUpstream):
		slog.Warn("assistant unavailable", "action", action, "error", err)
		jsonError(w, http.StatusServiceUnavailable, assistant.ErrUpstream.Error())
	default:
		storeError(w, err, action)
	}
}

// Ask handles POST /api/assistant/ask.
func (h *AssistantHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	answer, err := h.Service.AskQuestion(r.Context(), userID(r), req.Question)
	if err != nil {
		assistantError(w, err, "answer question")
		return
	}
	jsonResponse(w, http.StatusOK, answer)
}

// QueryStatus handles GET /api/assistant/query-status.
func (h *AssistantHandler) QueryStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.QueryStatus(r.Context(), userID(r))
	if err != nil {
		assistantError(w, err, "get query status")
		return
	}
	jsonResponse(w, http.StatusOK, status)
}

// AnalysisStatus handles GET /api/assistant/analysis-status.
func (h *AssistantHandler) AnalysisStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.AnalysisStatus(r.Context(), userID(r))
	if err != nil {
		assistantError(w, err, "get analysis status")
		return
	}
	jsonResponse(w, http.StatusOK, status)
}

// AnalyzeImage handles POST /api/assistant/analyze-image.
func (h *AssistantHandler) AnalyzeImage(w http.ResponseWriter, r *http.Request) {
	var req analyzeImageRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	analysis, err := h.Service.AnalyzeImage(r.Context(), userID(r), req.Image, req.MIMEType)
	if err != nil {
		assistantError(w, err, "analyze image")
		return
	}
	jsonResponse(w, http.StatusOK, analysis)
}

// Suggestions handles GET /api/assistant/suggestions.
func (h *AssistantHandler) Suggestions(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			jsonError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	result, err := h.Service.GenerateCollectionSuggestions(r.Context(), userID(r), limit)
	if err != nil {
		assistantError(w, err, "generate suggestions")
		return
	}
	jsonResponse(w, http.StatusOK, result)
}

