package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-router/services/providers"
	"github.com/upb/llm-router/services/routing"
	"go.uber.org/zap"
)

// fakeRoutingService returns a scripted result and records the last request.
type fakeRoutingService struct {
	text    string
	err     error
	lastReq *routing.Request
}

func (f *fakeRoutingService) Complete(ctx context.Context, req *routing.Request) (string, error) {
	f.lastReq = req
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func postCompletion(t *testing.T, handler *CompletionHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.HandleChatCompletion(rec, req)
	return rec
}

func TestHandleChatCompletion(t *testing.T) {
	t.Run("success returns openai-shaped response", func(t *testing.T) {
		svc := &fakeRoutingService{text: "hello back"}
		handler := NewCompletionHandler(svc, zap.NewNop())

		rec := postCompletion(t, handler, `{
			"model": "gpt-4",
			"messages": [
				{"role": "system", "content": "be brief"},
				{"role": "user", "content": "hello"}
			],
			"temperature": 0.3,
			"max_tokens": 128
		}`)

		require.Equal(t, http.StatusOK, rec.Code)

		var resp ChatCompletionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "chat.completion", resp.Object)
		assert.Equal(t, "gpt-4", resp.Model)
		require.Len(t, resp.Choices, 1)
		assert.Equal(t, "assistant", resp.Choices[0].Message.Role)
		assert.Equal(t, "hello back", resp.Choices[0].Message.Content)
		assert.Equal(t, "stop", resp.Choices[0].FinishReason)

		require.NotNil(t, svc.lastReq)
		assert.Equal(t, "gpt-4", svc.lastReq.Model)
		require.Len(t, svc.lastReq.Messages, 2)
		assert.Equal(t, providers.Message{Role: "user", Content: "hello"}, svc.lastReq.Messages[1])
		assert.Equal(t, 128, svc.lastReq.MaxTokens)
		assert.Equal(t, 0.3, svc.lastReq.Temperature)
	})

	t.Run("malformed json returns 400", func(t *testing.T) {
		handler := NewCompletionHandler(&fakeRoutingService{}, zap.NewNop())

		rec := postCompletion(t, handler, `{"model": "gpt-4"`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing model returns 400", func(t *testing.T) {
		handler := NewCompletionHandler(&fakeRoutingService{}, zap.NewNop())

		rec := postCompletion(t, handler, `{"messages": [{"role": "user", "content": "hi"}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty messages returns 400", func(t *testing.T) {
		handler := NewCompletionHandler(&fakeRoutingService{}, zap.NewNop())

		rec := postCompletion(t, handler, `{"model": "gpt-4", "messages": []}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid role returns 400", func(t *testing.T) {
		handler := NewCompletionHandler(&fakeRoutingService{}, zap.NewNop())

		rec := postCompletion(t, handler, `{"model": "gpt-4", "messages": [{"role": "robot", "content": "hi"}]}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("temperature out of range returns 400", func(t *testing.T) {
		handler := NewCompletionHandler(&fakeRoutingService{}, zap.NewNop())

		rec := postCompletion(t, handler, `{"model": "gpt-4", "messages": [{"role": "user", "content": "hi"}], "temperature": 3.5}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("exhausted backends return 502", func(t *testing.T) {
		svc := &fakeRoutingService{
			err: &routing.ExhaustedError{Attempts: 3, Err: assert.AnError},
		}
		handler := NewCompletionHandler(svc, zap.NewNop())

		rec := postCompletion(t, handler, `{"model": "gpt-4", "messages": [{"role": "user", "content": "hi"}]}`)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("unexpected error returns 500", func(t *testing.T) {
		svc := &fakeRoutingService{err: assert.AnError}
		handler := NewCompletionHandler(svc, zap.NewNop())

		rec := postCompletion(t, handler, `{"model": "gpt-4", "messages": [{"role": "user", "content": "hi"}]}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandleListModels(t *testing.T) {
	handler := NewCompletionHandler(&fakeRoutingService{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	handler.HandleListModels(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Object string `json:"object"`
		Data   []struct {
			ID     string `json:"id"`
			Object string `json:"object"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "list", resp.Object)
	require.Len(t, resp.Data, 6)
	assert.Equal(t, "model", resp.Data[0].Object)

	ids := make([]string, len(resp.Data))
	for i, d := range resp.Data {
		ids[i] = d.ID
	}
	assert.Contains(t, ids, "gpt-4")
	assert.Contains(t, ids, "gpt-3.5-turbo-16k-0613")
}
