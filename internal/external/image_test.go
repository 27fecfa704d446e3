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

func TestImageClient_Generate(t *testing.T) {
	var captured imageRequest
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": srv.URL + "/blob/out.png"}},
		})
	})
	mux.HandleFunc("/blob/out.png", func(w http.ResponseWriter, r *http.Request) {
		// The blob fetch carries no auth header.
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte("png-bytes"))
	})

	client := NewImageClient(srv.Client(), ImageClientConfig{
		BaseURL: srv.URL,
		APIKey:  types.SecretString("test-key"),
		Model:   "Kwai-Kolors/Kolors",
	})

	img, err := client.Generate(context.Background(), "white hair girl", "bad hands", "1920x1080")
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), img)

	assert.Equal(t, "Kwai-Kolors/Kolors", captured.Model)
	assert.Equal(t, "white hair girl", captured.Prompt)
	assert.Equal(t, "bad hands", captured.NegativePrompt)
	assert.Equal(t, "1920x1080", captured.Size)
}

func TestImageClient_MissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
	}))
	t.Cleanup(srv.Close)

	client := NewImageClient(srv.Client(), ImageClientConfig{
		BaseURL: srv.URL,
		APIKey:  types.SecretString("k"),
		Model:   "m",
	})

	_, err := client.Generate(context.Background(), "p", "n", "1920x1080")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamImage, appErr.Code)
}

func TestImageClient_FetchFailure(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.HandleFunc("/images/generations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"url": srv.URL + "/blob/gone.png"}},
		})
	})
	mux.HandleFunc("/blob/gone.png", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	client := NewImageClient(srv.Client(), ImageClientConfig{
		BaseURL: srv.URL,
		APIKey:  types.SecretString("k"),
		Model:   "m",
	})

	_, err := client.Generate(context.Background(), "p", "n", "1920x1080")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamImage, appErr.Code)
}
