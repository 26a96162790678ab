package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ledgerline/sift/internal/model"
)

type suggestRequest struct {
	Description     string  `json:"description"`
	UserID          string  `json:"user_id,omitempty"`
	Amount          float64 `json:"amount,omitempty"`
	TransactionType int     `json:"transaction_type,omitempty"`
}

type suggestResponse struct {
	Suggestions []model.Suggestion `json:"suggestions"`
}

func (s *Server) handleSuggest(w http.ResponseWriter, r *http.Request) {
	var req suggestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Description) == "" {
		writeError(w, http.StatusBadRequest, "description is required")
		return
	}
	if req.TransactionType == 0 {
		req.TransactionType = 1
	}

	suggestions := s.engine.SuggestCategory(r.Context(), req.Description, req.Amount, req.TransactionType, req.UserID)
	writeJSON(w, http.StatusOK, suggestResponse{Suggestions: suggestions})
}

type feedbackRequest struct {
	UserID            string  `json:"user_id"`
	Description       string  `json:"description"`
	SuggestedCategory string  `json:"suggested_category"`
	ActualCategory    string  `json:"actual_category"`
	Confidence        float64 `json:"confidence"`
	Amount            float64 `json:"amount"`
	TransactionType   int     `json:"transaction_type"`
	WasAccepted       bool    `json:"was_accepted"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Description) == "" || strings.TrimSpace(req.ActualCategory) == "" {
		writeError(w, http.StatusBadRequest, "description and actual_category are required")
		return
	}
	if req.TransactionType == 0 {
		req.TransactionType = 1
	}

	s.engine.RecordFeedback(r.Context(), model.FeedbackRecord{
		UserID:            req.UserID,
		Description:       req.Description,
		SuggestedCategory: req.SuggestedCategory,
		ActualCategory:    req.ActualCategory,
		WasAccepted:       req.WasAccepted,
		Confidence:        req.Confidence,
		Amount:            req.Amount,
		TransactionType:   req.TransactionType,
	})

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (s *Server) handleRetrain(w http.ResponseWriter, r *http.Request) {
	if err := s.scheduler.RunManualRetrain(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "retrained",
		"model_version": s.engine.ModelVersion(),
		"training_size": s.engine.TrainingSize(),
	})
}

func (s *Server) handleSchedulerStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.scheduler.Status())
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	patterns, rules := s.engine.PatternCounts()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":            "ok",
		"engine_ready":      s.engine.Ready(),
		"merchant_patterns": patterns,
		"default_rules":     rules,
	})
}
