package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"task-agent/internal/application/port/output"
	"task-agent/internal/domain/entity"
	"task-agent/internal/infrastructure/logger"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertResponseMessage_WithContent(t *testing.T) {
	msg := goopenai.ChatCompletionMessage{
		Role:    "assistant",
		Content: "Hello, world!",
	}

	result := convertResponseMessage(msg)

	assert.Equal(t, entity.RoleAssistant, result.Role)
	assert.Equal(t, "Hello, world!", result.Content)
}

func TestConvertResponseMessage_DefaultsRole(t *testing.T) {
	result := convertResponseMessage(goopenai.ChatCompletionMessage{Content: "x"})
	assert.Equal(t, entity.RoleAssistant, result.Role)
}

func TestConvertMessages(t *testing.T) {
	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: "format"},
		{Role: entity.RoleUser, Content: "task"},
	}

	result := convertMessages(messages)

	assert.Len(t, result, 2)
	assert.Equal(t, "system", result[0].Role)
	assert.Equal(t, "format", result[0].Content)
	assert.Equal(t, "user", result[1].Role)
}

func newCompletionServer(t *testing.T, content string, captured *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(captured))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15},
		})
	}))
}

func TestChat_RoundTrip(t *testing.T) {
	var body map[string]any
	srv := newCompletionServer(t, `{"ability":{"name":"finish"}}`, &body)
	defer srv.Close()

	cfg := DefaultConfig("test-key", "gpt-4o")
	cfg.BaseURL = srv.URL + "/v1"
	cfg.JSONMode = true
	cfg.Logger = logger.NewNop()
	a := NewAdapter(cfg)

	resp, err := a.Chat(context.Background(), output.ChatRequest{
		Messages: []entity.Message{
			{Role: entity.RoleSystem, Content: "sys"},
			{Role: entity.RoleUser, Content: "usr"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ability":{"name":"finish"}}`, resp.Message.Content)
	assert.Equal(t, 15, resp.TotalTokens)

	assert.Equal(t, "gpt-4o", body["model"])
	msgs, ok := body["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 2)
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_object", format["type"])
}

func TestChat_NoJSONModeByDefault(t *testing.T) {
	var body map[string]any
	srv := newCompletionServer(t, "hi", &body)
	defer srv.Close()

	cfg := DefaultConfig("test-key", "gpt-4o")
	cfg.BaseURL = srv.URL + "/v1"
	_, err := NewAdapter(cfg).Chat(context.Background(), output.ChatRequest{
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "usr"}},
	})
	require.NoError(t, err)
	assert.NotContains(t, body, "response_format")
}

func TestChat_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
	}))
	defer srv.Close()

	cfg := DefaultConfig("test-key", "gpt-4o")
	cfg.BaseURL = srv.URL + "/v1"
	_, err := NewAdapter(cfg).Chat(context.Background(), output.ChatRequest{
		Messages: []entity.Message{{Role: entity.RoleUser, Content: "usr"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion failed")

	var apiErr *goopenai.APIError
	assert.ErrorAs(t, err, &apiErr)
}
