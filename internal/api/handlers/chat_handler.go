package handlers

import (
	"context"
	"net/http"

	"github.com/eswasthya/portal/backend/internal/application/services"
	"github.com/eswasthya/portal/backend/internal/domain/entities"
)

// ChatProcessor answers a chat message
type ChatProcessor interface {
	Process(ctx context.Context, message string) (*services.ChatResult, error)
}

// ChatHandler handles assistant chat requests
type ChatHandler struct {
	chat ChatProcessor
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chat ChatProcessor) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Message string `json:"message"`
}

type symptomResult struct {
	Status   string                    `json:"status"`
	Analysis *entities.SymptomAnalysis `json:"analysis"`
}

type chatResponse struct {
	Status          string         `json:"status"`
	Response        string         `json:"response"`
	SymptomAnalysis *symptomResult `json:"symptom_analysis"`
}

// ProcessChat handles POST /chat/process/
func (h *ChatHandler) ProcessChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleError(w, r, err)
		return
	}

	result, err := h.chat.Process(r.Context(), req.Message)
	if err != nil {
		handleError(w, r, err)
		return
	}

	resp := chatResponse{Status: statusSuccess, Response: result.Response}
	if result.SymptomAnalysis != nil {
		resp.SymptomAnalysis = &symptomResult{Status: statusSuccess, Analysis: result.SymptomAnalysis}
	}
	respondWithJSON(w, http.StatusOK, resp)
}
