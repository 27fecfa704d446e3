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

// ImageService is the image-generation dependency of the content
// generator. Generate returns the raw bytes of the rendered image.
type ImageService interface {
	Generate(ctx context.Context, prompt, negativePrompt, size string) ([]byte, error)
}

// ImageClientConfig holds the configuration for creating an ImageClient.
type ImageClientConfig struct {
	BaseURL string
	APIKey  types.SecretString
	Model   string
	Logger  *slog.Logger
}

// ImageClient implements ImageService against an OpenAI-compatible
// /images/generations endpoint. The endpoint returns a URL to the rendered
// image, which is then fetched in a second plain-HTTP request.
type ImageClient struct {
	base    *BaseClient
	apiKey  types.SecretString
	baseURL string
	model   string
	logger  *slog.Logger

	// fetcher downloads the generated image from the URL the endpoint
	// returns. Separate from base so tests can serve image bytes locally.
	fetcher *http.Client
}

// NewImageClient creates a new ImageClient.
func NewImageClient(httpClient *http.Client, cfg ImageClientConfig) *ImageClient {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	base := NewBaseClient(
		httpClient,
		"image",
		NoRetryPolicy(),
		"foreversister/1.0",
	)

	return &ImageClient{
		base:    base,
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		model:   cfg.Model,
		logger:  logger,
		fetcher: httpClient,
	}
}

// imageRequest is the /images/generations request body.
type imageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	NegativePrompt string `json:"negative_prompt"`
	Size           string `json:"size"`
}

// imageResponse is the subset of the /images/generations response we consume.
type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}

// Generate implements ImageService. A missing data entry or image URL is a
// data error of the call and aborts the generation run; there is no retry.
func (c *ImageClient) Generate(ctx context.Context, prompt, negativePrompt, size string) ([]byte, error) {
	body, err := json.Marshal(imageRequest{
		Model:          c.model,
		Prompt:         prompt,
		NegativePrompt: negativePrompt,
		Size:           size,
	})
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to marshal image generation request",
			err,
		)
	}

	url := c.baseURL + "/images/generations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create image generation request",
			err,
		)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey.Unmask())

	start := time.Now()
	c.logger.InfoContext(ctx, "requesting image generation",
		"model", c.model,
		"size", size,
	)

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, wrapUpstream(types.ErrCodeUpstreamImage, "image generation request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Error("image generation API error",
			"status_code", resp.StatusCode,
			"response_body", string(bodyBytes),
		)
		return nil, types.NewAppError(
			types.ErrCodeUpstreamImage,
			fmt.Sprintf("image generation returned %d", resp.StatusCode),
			fmt.Errorf("image generation returned %d: %s", resp.StatusCode, string(bodyBytes)),
		)
	}

	var imgResp imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgResp); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamImage,
			"failed to decode image generation response",
			err,
		)
	}

	if len(imgResp.Data) == 0 || imgResp.Data[0].URL == "" {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamImage,
			"image generation returned no image URL",
			nil,
		)
	}

	img, err := c.fetch(ctx, imgResp.Data[0].URL)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "image generated",
		"model", c.model,
		"bytes", len(img),
		"elapsed", time.Since(start).Round(time.Millisecond).String(),
	)

	return img, nil
}

// fetch downloads the rendered image from the URL the endpoint returned.
// The URL points at the provider's blob store and is fetched directly,
// without auth headers.
func (c *ImageClient) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to create image fetch request",
			err,
		)
	}

	resp, err := c.fetcher.Do(req)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamImage,
			"failed to fetch generated image",
			err,
		)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamImage,
			fmt.Sprintf("image fetch returned %d", resp.StatusCode),
			nil,
		)
	}

	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamImage,
			"failed to read generated image body",
			err,
		)
	}

	return img, nil
}

// Compile-time interface compliance check.
var _ ImageService = (*ImageClient)(nil)
