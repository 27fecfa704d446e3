package external

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foreversister/internal/types"
)

func newChatTestServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *ChatClient) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewChatClient(srv.Client(), ChatClientConfig{
		BaseURL: srv.URL,
		APIKey:  types.SecretString("test-key"),
		Model:   "deepseek-ai/DeepSeek-V3",
	})
	return srv, client
}

func chatReply(content string) map[string]any {
	return map[string]any{
		"choices": []map[string]any{
			{"message": map[string]any{"content": content}},
		},
	}
}

func TestChatClient_Complete(t *testing.T) {
	var captured chatRequest
	_, client := newChatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(chatReply("\n  亲爱的哥哥：\n见字如面。\n\n"))
	})

	got, err := client.Complete(context.Background(), []ChatMessage{
		{Role: "system", Content: "你是妹妹"},
		{Role: "user", Content: "写一封信"},
	})
	require.NoError(t, err)

	// Surrounding whitespace is trimmed, inner newlines preserved.
	assert.Equal(t, "亲爱的哥哥：\n见字如面。", got)

	assert.Equal(t, "deepseek-ai/DeepSeek-V3", captured.Model)
	assert.Equal(t, 4096, captured.MaxTokens)
	assert.InDelta(t, 0.7, captured.Temperature, 0.001)
	assert.False(t, captured.Stream)
	assert.Nil(t, captured.ResponseFormat)
	require.Len(t, captured.Messages, 2)
}

func TestChatClient_CompleteJSON(t *testing.T) {
	var captured chatRequest
	_, client := newChatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(chatReply(`{"prompt": "girl", "negative_prompt": "bad hands"}`))
	})

	var out struct {
		Prompt         string `json:"prompt"`
		NegativePrompt string `json:"negative_prompt"`
	}
	require.NoError(t, client.CompleteJSON(context.Background(), []ChatMessage{{Role: "user", Content: "提示词"}}, &out))

	assert.Equal(t, "girl", out.Prompt)
	assert.Equal(t, "bad hands", out.NegativePrompt)
	require.NotNil(t, captured.ResponseFormat)
	assert.Equal(t, "json_object", captured.ResponseFormat.Type)
}

func TestChatClient_CompleteJSON_MalformedReply(t *testing.T) {
	_, client := newChatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chatReply("这不是JSON"))
	})

	var out map[string]string
	err := client.CompleteJSON(context.Background(), []ChatMessage{{Role: "user", Content: "x"}}, &out)
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamModel, appErr.Code)
}

func TestChatClient_ErrorStatus(t *testing.T) {
	_, client := newChatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	})

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "x"}})
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamModel, appErr.Code)
}

func TestChatClient_NoChoices(t *testing.T) {
	_, client := newChatTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	})

	_, err := client.Complete(context.Background(), []ChatMessage{{Role: "user", Content: "x"}})
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamModel, appErr.Code)
}
