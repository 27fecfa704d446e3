package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"foreversister/internal/types"
)

// Chat sampling parameters, fixed for every call so successive runs stay
// deterministic-enough for the same prompt.
const (
	chatMaxTokens   = 4096
	chatTemperature = 0.7
)

// ChatMessage is one turn of a chat-completion dialogue.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatService is the text-generation dependency of the content generator.
// Complete returns the model's reply with surrounding whitespace trimmed;
// CompleteJSON constrains the response to a single JSON object and decodes
// it into out.
type ChatService interface {
	Complete(ctx context.Context, messages []ChatMessage) (string, error)
	CompleteJSON(ctx context.Context, messages []ChatMessage, out any) error
}

// ChatClientConfig holds the configuration for creating a ChatClient.
type ChatClientConfig struct {
	BaseURL string
	APIKey  types.SecretString
	Model   string
	Logger  *slog.Logger
}

// ChatClient implements ChatService against an OpenAI-compatible
// /chat/completions endpoint through BaseClient. Requests are
// non-streaming; the first choice's message content is the result.
type ChatClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	model   string
	logger  *slog.Logger
}

// NewChatClient creates a new ChatClient. The httpClient timeout should
// cover full completion latency (the model may take a minute or more).
func NewChatClient(httpClient *http.Client, cfg ChatClientConfig) *ChatClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"chat",
		NoRetryPolicy(),
		"foreversister/1.0",
	)

	return &ChatClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		logger:  logger,
	}
}

// chatRequest is the /chat/completions request body.
type chatRequest struct {
	Model          string              `json:"model"`
	Messages       []ChatMessage       `json:"messages"`
	MaxTokens      int                 `json:"max_tokens"`
	Temperature    float64             `json:"temperature"`
	Stream         bool                `json:"stream"`
	ResponseFormat *chatResponseFormat `json:"response_format,omitempty"`
}

type chatResponseFormat struct {
	Type string `json:"type"`
}

// chatResponse is the subset of the /chat/completions response we consume.
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Complete implements ChatService.
func (c *ChatClient) Complete(ctx context.Context, messages []ChatMessage) (string, error) {
	return c.complete(ctx, messages, nil)
}

// CompleteJSON implements ChatService. The request carries
// response_format {"type": "json_object"} so the model must answer with a
// single JSON document; a reply that still fails to decode is a data
// error of that call and aborts the run.
func (c *ChatClient) CompleteJSON(ctx context.Context, messages []ChatMessage, out any) error {
	raw, err := c.complete(ctx, messages, &chatResponseFormat{Type: "json_object"})
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamModel,
			"model returned malformed JSON",
			err,
		)
	}
	return nil
}

func (c *ChatClient) complete(ctx context.Context, messages []ChatMessage, format *chatResponseFormat) (string, error) {
	reqBody := chatRequest{
		Model:          c.model,
		Messages:       messages,
		MaxTokens:      chatMaxTokens,
		Temperature:    chatTemperature,
		Stream:         false,
		ResponseFormat: format,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal chat completion request",
			err,
		)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create chat completion request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	start := time.Now()
	c.logger.InfoContext(ctx, "requesting chat completion",
		"model", c.model,
		"messages", len(messages),
		"json_mode", format != nil,
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return "", wrapUpstream(types.ErrCodeUpstreamModel, "chat completion request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", c.handleErrorResponse(resp)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", types.NewAppError(
			types.ErrCodeUpstreamModel,
			"failed to decode chat completion response",
			err,
		)
	}

	if len(chatResp.Choices) == 0 {
		return "", types.NewAppError(
			types.ErrCodeUpstreamModel,
			"chat completion returned no choices",
			nil,
		)
	}

	c.logger.InfoContext(ctx, "chat completion received",
		"model", c.model,
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// handleErrorResponse reads and logs the error body from a non-2xx
// response, then returns an appropriate AppError.
func (c *ChatClient) handleErrorResponse(resp *http.Response) *types.AppError {
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	c.logger.Error("chat completion API error",
		"status_code", resp.StatusCode,
		"response_body", string(bodyBytes),
	)

	return types.NewAppError(
		types.ErrCodeUpstreamModel,
		fmt.Sprintf("chat completion returned %d", resp.StatusCode),
		fmt.Errorf("chat completion returned %d: %s", resp.StatusCode, string(bodyBytes)),
	)
}

// wrapUpstream re-codes an AppError from BaseClient under the given
// service-specific code, preserving the original as the cause.
func wrapUpstream(code types.ErrorCode, message string, err error) *types.AppError {
	if appErr, ok := err.(*types.AppError); ok {
		return types.NewAppError(code, appErr.Message, appErr)
	}
	return types.NewAppError(code, message, err)
}

// Compile-time interface compliance check.
var _ ChatService = (*ChatClient)(nil)
