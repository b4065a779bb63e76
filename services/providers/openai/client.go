package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/upb/llm-router/services/providers"
)

// Client implements providers.CompletionClient for the OpenAI wire dialect
// and its Azure variant. The two differ only in URL shape and auth header:
//
//	openai: POST {base}/chat/completions            Authorization: Bearer {key}
//	azure:  POST {base}/openai/deployments/{id}/chat/completions?api-version={v}
//	        api-key: {key}
//
// The client holds no per-backend state; every attempt is fully described by
// the Endpoint passed in, so one Client instance serves all candidates.
type Client struct {
	httpClient *http.Client
}

// Config holds HTTP-level settings for the client.
type Config struct {
	Timeout time.Duration
}

// NewClient creates a new completion client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Complete performs one chat-completion attempt against the given endpoint.
func (c *Client) Complete(ctx context.Context, endpoint providers.Endpoint, modelID string, req *providers.CompletionRequest) (string, error) {
	wireReq := chatRequest{
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if endpoint.Family != providers.FamilyAzure {
		// Azure addresses the model through the deployment path instead.
		wireReq.Model = modelID
	}

	body, err := json.Marshal(wireReq)
	if err != nil {
		return "", providers.NewProviderError(endpoint.Family, endpoint.Host(), "MARSHAL_ERROR", "failed to marshal request", 0, false, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL(endpoint, modelID), bytes.NewReader(body))
	if err != nil {
		return "", providers.NewProviderError(endpoint.Family, endpoint.Host(), "REQUEST_ERROR", "failed to create request", 0, false, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	switch endpoint.Family {
	case providers.FamilyAzure:
		httpReq.Header.Set("api-key", endpoint.APIKey)
	default:
		httpReq.Header.Set("Authorization", "Bearer "+endpoint.APIKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", providers.NewProviderError(endpoint.Family, endpoint.Host(), "HTTP_ERROR", "HTTP request failed", 0, true, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return "", providers.NewProviderError(endpoint.Family, endpoint.Host(), "READ_ERROR", "failed to read response", httpResp.StatusCode, false, err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return "", c.handleErrorResponse(endpoint, httpResp.StatusCode, respBody)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", providers.NewProviderError(endpoint.Family, endpoint.Host(), "UNMARSHAL_ERROR", "failed to unmarshal response", httpResp.StatusCode, false, err)
	}

	if len(chatResp.Choices) == 0 {
		return "", providers.NewProviderError(endpoint.Family, endpoint.Host(), "EMPTY_RESPONSE", "response contained no choices", httpResp.StatusCode, false, nil)
	}

	return chatResp.Choices[0].Message.Content, nil
}

// requestURL builds the dialect-specific completion URL.
func requestURL(endpoint providers.Endpoint, modelID string) string {
	if endpoint.Family == providers.FamilyAzure {
		return fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
			endpoint.BaseURL, modelID, endpoint.APIVersion)
	}
	return endpoint.BaseURL + "/chat/completions"
}

// handleErrorResponse maps a non-200 response to a ProviderError.
func (c *Client) handleErrorResponse(endpoint providers.Endpoint, statusCode int, body []byte) error {
	retryable := statusCode >= 500 || statusCode == http.StatusTooManyRequests

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err != nil || errResp.Error.Message == "" {
		return providers.NewProviderError(endpoint.Family, endpoint.Host(), "UNKNOWN_ERROR", string(body), statusCode, retryable, nil)
	}

	return providers.NewProviderError(
		endpoint.Family,
		endpoint.Host(),
		errResp.Error.Type,
		errResp.Error.Message,
		statusCode,
		retryable,
		errors.New(errResp.Error.Message),
	)
}

// Wire types

type chatRequest struct {
	Model       string              `json:"model,omitempty"`
	Messages    []providers.Message `json:"messages"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
	Temperature float64             `json:"temperature,omitempty"`
}

type chatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []choice `json:"choices"`
}

type choice struct {
	Index        int               `json:"index"`
	Message      providers.Message `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    string `json:"code"`
}
