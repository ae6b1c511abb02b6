package background

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// ProgressFunc receives coarse progress updates while a removal runs.
// Progress is a percentage in [0, 100].
type ProgressFunc func(phase string, progress int)

// Remover strips the background from an image and returns the cutout bytes.
type Remover interface {
	Remove(ctx context.Context, image []byte, mimeType string, onProgress ProgressFunc) ([]byte, string, error)
}

// Options configures the HTTP remover.
type Options struct {
	APIURL     string
	APIKey     string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// HTTPRemover calls an external matting service. Without an API URL it
// returns the source bytes unchanged so local development keeps working.
type HTTPRemover struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewHTTPRemover wires the remover from options.
func NewHTTPRemover(opts Options) *HTTPRemover {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 90 * time.Second}
	}
	return &HTTPRemover{
		apiURL:     opts.APIURL,
		apiKey:     opts.APIKey,
		httpClient: client,
		logger:     opts.Logger,
	}
}

type removeRequest struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
}

type removeResponse struct {
	Image    string `json:"image"`
	MimeType string `json:"mime_type"`
	Error    string `json:"error,omitempty"`
}

// Remove sends the image to the matting service and decodes the cutout.
func (r *HTTPRemover) Remove(ctx context.Context, image []byte, mimeType string, onProgress ProgressFunc) ([]byte, string, error) {
	if onProgress == nil {
		onProgress = func(string, int) {}
	}
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}

	onProgress("uploading", 10)

	if r.apiURL == "" {
		r.logger.Debug().Msg("background: no API configured, returning source image")
		onProgress("processing", 60)
		onProgress("finalizing", 100)
		return image, mimeType, nil
	}

	payload, err := json.Marshal(removeRequest{
		Image:    base64.StdEncoding.EncodeToString(image),
		MimeType: mimeType,
	})
	if err != nil {
		return nil, "", fmt.Errorf("marshal request: %w", err)
	}

	onProgress("processing", 40)

	var out removeResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		if r.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+r.apiKey)
		}

		resp, err := r.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("call background service: %w", err)
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("background service status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return backoff.Permanent(fmt.Errorf("background service status %d: %s", resp.StatusCode, truncate(body, 200)))
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, "", err
	}
	if out.Error != "" {
		return nil, "", fmt.Errorf("background service: %s", out.Error)
	}

	onProgress("finalizing", 90)

	cutout, err := base64.StdEncoding.DecodeString(out.Image)
	if err != nil {
		return nil, "", fmt.Errorf("decode cutout: %w", err)
	}
	resultMime := out.MimeType
	if resultMime == "" {
		resultMime = "image/png"
	}

	onProgress("finalizing", 100)
	return cutout, resultMime, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

var _ Remover = (*HTTPRemover)(nil)
