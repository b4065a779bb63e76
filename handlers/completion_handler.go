package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/routing"
	"github.com/upb/llm-router/utils"
	"go.uber.org/zap"
)

// ChatCompletionRequest represents an OpenAI-compatible chat completion request
type ChatCompletionRequest struct {
	Model       string        `json:"model" validate:"required"`
	Messages    []ChatMessage `json:"messages" validate:"required,min=1,dive"`
	Temperature *float64      `json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	MaxTokens   *int          `json:"max_tokens,omitempty" validate:"omitempty,gt=0"`
}

// ChatMessage represents a single chat message
type ChatMessage struct {
	Role    string `json:"role" validate:"required,oneof=system user assistant"`
	Content string `json:"content" validate:"required"`
}

// ChatCompletionResponse represents an OpenAI-compatible chat completion response
type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

// ChatChoice represents a completion choice
type ChatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// RoutingService defines the routing operation the handler depends on
type RoutingService interface {
	// Complete routes one chat-completion call across the configured backends
	Complete(ctx context.Context, req *routing.Request) (string, error)
}

// CompletionHandler handles chat completion HTTP requests
type CompletionHandler struct {
	router RoutingService
	logger *zap.Logger
}

// NewCompletionHandler creates a new CompletionHandler
func NewCompletionHandler(router RoutingService, logger *zap.Logger) *CompletionHandler {
	return &CompletionHandler{
		router: router,
		logger: logger,
	}
}

// HandleChatCompletion handles POST /v1/chat/completions
func (h *CompletionHandler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := utils.RequestIDFromContext(ctx)

	var chatReq ChatCompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&chatReq); err != nil {
		h.logger.Warn("failed to parse request body",
			zap.String("request_id", requestID),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&chatReq); err != nil {
		h.logger.Warn("request validation failed",
			zap.String("request_id", requestID),
			zap.Error(err))
		var validationErr *utils.ValidationError
		if errors.As(err, &validationErr) {
			_ = utils.WriteBadRequest(w, validationErr.Message, validationErr.Details())
			return
		}
		_ = utils.WriteBadRequest(w, "Invalid request", nil)
		return
	}

	routeReq := &routing.Request{
		Model:    chatReq.Model,
		Messages: make([]providers.Message, len(chatReq.Messages)),
	}
	for i, msg := range chatReq.Messages {
		routeReq.Messages[i] = providers.Message{Role: msg.Role, Content: msg.Content}
	}
	if chatReq.MaxTokens != nil {
		routeReq.MaxTokens = *chatReq.MaxTokens
	}
	if chatReq.Temperature != nil {
		routeReq.Temperature = *chatReq.Temperature
	}

	text, err := h.router.Complete(ctx, routeReq)
	if err != nil {
		h.logger.Error("completion failed",
			zap.String("request_id", requestID),
			zap.String("model", chatReq.Model),
			zap.Error(err))
		if errors.Is(err, routing.ErrBackendsExhausted) {
			_ = utils.WriteBadGateway(w, "All backends failed for this request")
			return
		}
		_ = utils.WriteInternalServerError(w, "")
		return
	}

	resp := ChatCompletionResponse{
		ID:      "chatcmpl-" + requestID,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   chatReq.Model,
		Choices: []ChatChoice{
			{
				Index:        0,
				Message:      ChatMessage{Role: "assistant", Content: text},
				FinishReason: "stop",
			},
		},
	}

	_ = utils.WriteJSON(w, http.StatusOK, resp)
}

// HandleListModels handles GET /v1/models
func (h *CompletionHandler) HandleListModels(w http.ResponseWriter, r *http.Request) {
	type modelEntry struct {
		ID     string `json:"id"`
		Object string `json:"object"`
	}
	models := routing.KnownModels()
	entries := make([]modelEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, modelEntry{ID: m, Object: "model"})
	}
	_ = utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"object": "list",
		"data":   entries,
	})
}
