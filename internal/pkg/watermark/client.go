package watermark

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/LucasPerrin/Crealance/internal/pkg/env"
)

// Client calls the external watermark service that renders protected
// previews. The service receives the raw asset and returns the watermarked
// bytes; no image processing happens in-process.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClientFromEnv builds the watermark client from the environment.
func NewClientFromEnv() *Client {
	return &Client{
		BaseURL: strings.TrimRight(env.GetEnv("WATERMARK_SERVICE_URL", ""), "/"),
		APIKey:  strings.TrimSpace(env.GetEnv("WATERMARK_SERVICE_KEY", "")),
		HTTPClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// IsConfigured reports whether a service URL is present.
func (c *Client) IsConfigured() bool {
	return c.BaseURL != ""
}

// Render sends the asset to the watermark service and returns the
// watermarked preview bytes.
func (c *Client) Render(ctx context.Context, filename string, asset io.Reader) ([]byte, error) {
	if !c.IsConfigured() {
		return nil, fmt.Errorf("WATERMARK_SERVICE_URL is not configured")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, asset); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/watermark", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("watermark service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("watermark service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return io.ReadAll(resp.Body)
}
