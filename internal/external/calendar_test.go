package external

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"foreversister/internal/types"
)

func TestExtractEventName(t *testing.T) {
	cases := []struct {
		name string
		doc  map[string]any
		want string
	}{
		{
			name: "holiday array with name",
			doc: map[string]any{
				"holiday": []any{map[string]any{"name": "中秋节"}},
			},
			want: "中秋节",
		},
		{
			name: "holiday single object",
			doc: map[string]any{
				"holiday": map[string]any{"name": "国庆节"},
			},
			want: "国庆节",
		},
		{
			name: "festival key with title field",
			doc: map[string]any{
				"festival": []any{map[string]any{"title": "元宵节"}},
			},
			want: "元宵节",
		},
		{
			name: "data key with festival field",
			doc: map[string]any{
				"data": []any{map[string]any{"festival": "端午节"}},
			},
			want: "端午节",
		},
		{
			name: "top-level name fallback",
			doc:  map[string]any{"name": "重阳节"},
			want: "重阳节",
		},
		{
			name: "list key priority over top-level fallback",
			doc: map[string]any{
				"events": []any{map[string]any{"name": "清明节"}},
				"name":   "应被忽略",
			},
			want: "清明节",
		},
		{
			name: "empty array falls through",
			doc: map[string]any{
				"holiday": []any{},
				"title":   "春节",
			},
			want: "春节",
		},
		{
			name: "nothing recognizable",
			doc:  map[string]any{"code": float64(0), "msg": "ok"},
			want: "",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractEventName(tc.doc))
		})
	}
}

func TestCalendarClient_Lookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2025-10-01", r.URL.Query().Get("date"))
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		_, _ = w.Write([]byte(`{"holiday": [{"name": "国庆节"}]}`))
	}))
	t.Cleanup(srv.Close)

	client := NewCalendarClient(srv.Client(), CalendarClientConfig{
		BaseURL: srv.URL,
		APIKey:  types.SecretString("test-key"),
	})

	name, err := client.Lookup(context.Background(), "2025-10-01")
	require.NoError(t, err)
	assert.Equal(t, "国庆节", name)
}

func TestCalendarClient_NoEventIsEmptyNotError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code": 0, "holiday": []}`))
	}))
	t.Cleanup(srv.Close)

	client := NewCalendarClient(srv.Client(), CalendarClientConfig{
		BaseURL: srv.URL,
		APIKey:  types.SecretString("k"),
	})

	name, err := client.Lookup(context.Background(), "2025-10-02")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestCalendarClient_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>not json</html>`))
	}))
	t.Cleanup(srv.Close)

	client := NewCalendarClient(srv.Client(), CalendarClientConfig{
		BaseURL: srv.URL,
		APIKey:  types.SecretString("k"),
	})

	_, err := client.Lookup(context.Background(), "2025-10-01")
	require.Error(t, err)

	appErr, ok := err.(*types.AppError)
	require.True(t, ok)
	assert.Equal(t, types.ErrCodeUpstreamCalendar, appErr.Code)
}
