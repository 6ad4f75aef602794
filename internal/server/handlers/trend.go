// internal/server/handlers/trend.go

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Amro212/meme-radar/internal/domain/meme"
)

// CandidateFinder is the read surface the trend API needs.
type CandidateFinder interface {
	Find(ctx context.Context, filter meme.Filter) ([]meme.TrendCandidate, error)
}

// TrendHandler handles trend-related HTTP requests
type TrendHandler struct {
	finder CandidateFinder
}

// NewTrendHandler creates a new trend handler
func NewTrendHandler(finder CandidateFinder) *TrendHandler {
	return &TrendHandler{
		finder: finder,
	}
}

// GetTrends returns the current candidate set, ranked
func (h *TrendHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	filter := meme.Filter{Limit: 50}

	if v := r.URL.Query().Get("platform"); v != "" {
		p := meme.Platform(v)
		if !meme.KnownPlatform(p) && p != meme.PlatformCross {
			respondWithError(w, http.StatusBadRequest, "Unknown platform", nil)
			return
		}
		filter.Platform = p
	}

	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid since timestamp", err)
			return
		}
		filter.Since = since
	}

	if v := r.URL.Query().Get("min_score"); v != "" {
		minScore, err := strconv.ParseFloat(v, 64)
		if err != nil || minScore < 0 || minScore > 1 {
			respondWithError(w, http.StatusBadRequest, "Invalid min_score", err)
			return
		}
		filter.MinScore = minScore
	}

	if v := r.URL.Query().Get("cross_platform"); v != "" {
		crossOnly, err := strconv.ParseBool(v)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid cross_platform flag", err)
			return
		}
		filter.CrossOnly = crossOnly
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 500 {
			respondWithError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		filter.Limit = limit
	}

	candidates, err := h.finder.Find(r.Context(), filter)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "Failed to get trends", err)
		return
	}

	if candidates == nil {
		candidates = []meme.TrendCandidate{}
	}

	respondWithJSON(w, http.StatusOK, candidates)
}

// Helper for JSON responses
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Failed to marshal response"))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper for error responses
func respondWithError(w http.ResponseWriter, code int, message string, err error) {
	response := map[string]string{"error": message}
	if err != nil {
		response["detail"] = err.Error()
	}

	jsonResponse, _ := json.Marshal(response)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(jsonResponse)
}
