package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"foreversister/internal/types"
)

// CalendarService is the optional remote holiday source of the event
// resolver. Lookup returns the event name for the date, or "" when the
// service knows of none. Transport and schema failures surface as errors;
// the resolver treats them as "no event" and falls through to the next
// source.
type CalendarService interface {
	Lookup(ctx context.Context, date string) (string, error)
}

// CalendarClientConfig holds the configuration for creating a CalendarClient.
type CalendarClientConfig struct {
	BaseURL string
	APIKey  types.SecretString
	Logger  *slog.Logger
}

// CalendarClient implements CalendarService against a loosely-schemed
// third-party holiday API queried by date. The response shape is not
// specified anywhere we can rely on, so extraction is modeled as an
// ordered list of candidate strategies tried in sequence; the first one
// that yields a name wins.
type CalendarClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	logger  *slog.Logger
}

// NewCalendarClient creates a new CalendarClient.
func NewCalendarClient(httpClient *http.Client, cfg CalendarClientConfig) *CalendarClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"calendar",
		NoRetryPolicy(),
		"foreversister/1.0",
	)

	return &CalendarClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		logger:  logger,
	}
}

// listKeys are the response fields probed, in order, for a list (or
// object) of event entries.
var listKeys = []string{"holiday", "festival", "data", "events", "holidays"}

// nameKeys are the fields probed on an event entry for its display name.
var nameKeys = []string{"name", "title", "festival"}

// Lookup implements CalendarService. date is formatted YYYY-MM-DD.
func (c *CalendarClient) Lookup(ctx context.Context, date string) (string, error) {
	q := url.Values{}
	q.Set("date", date)
	q.Set("key", c.apiKey.Unmask())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create calendar lookup request",
			err,
		)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return "", wrapUpstream(types.ErrCodeUpstreamCalendar, "calendar lookup failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", types.NewAppError(
			types.ErrCodeUpstreamCalendar,
			fmt.Sprintf("calendar service returned %d", resp.StatusCode),
			nil,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamCalendar,
			"failed to read calendar response",
			err,
		)
	}

	var doc map[string]any
	if err := json.Unmarshal(body, &doc); err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamCalendar,
			"calendar service returned malformed JSON",
			err,
		)
	}

	return ExtractEventName(doc), nil
}

// ExtractEventName probes a loosely-schemed calendar response for an event
// name. Strategies, in order:
//  1. For each of the known list keys, take the first element of a
//     non-empty array and read its name/title/festival field. A key
//     holding a single object instead of an array is probed the same way.
//  2. Fall back to a top-level name/title field.
//
// Returns "" when no strategy yields a name.
func ExtractEventName(doc map[string]any) string {
	for _, key := range listKeys {
		entry, ok := firstEntry(doc[key])
		if !ok {
			continue
		}
		if name := entryName(entry); name != "" {
			return name
		}
	}

	for _, key := range []string{"name", "title"} {
		if name, ok := doc[key].(string); ok && name != "" {
			return name
		}
	}

	return ""
}

// firstEntry normalizes a probed value to its first object entry.
func firstEntry(v any) (map[string]any, bool) {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return nil, false
		}
		entry, ok := t[0].(map[string]any)
		return entry, ok
	case map[string]any:
		return t, true
	default:
		return nil, false
	}
}

// entryName reads the first non-empty name field of an event entry.
func entryName(entry map[string]any) string {
	for _, key := range nameKeys {
		if name, ok := entry[key].(string); ok && name != "" {
			return name
		}
	}
	return ""
}

// Compile-time interface compliance check.
var _ CalendarService = (*CalendarClient)(nil)
