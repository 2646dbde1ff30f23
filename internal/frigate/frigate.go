// Package frigate talks to the Frigate NVR HTTP API: latest-frame snapshots
// and camera discovery.
package frigate

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// ErrNoFrame is returned when Frigate answers with an empty image.
var ErrNoFrame = errors.New("frigate returned an empty frame")

// maxFrameSize bounds a single snapshot download.
const maxFrameSize = 32 << 20

// Client is a Frigate API client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client for the Frigate instance at baseURL. Every
// request is bounded by timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// FrameURL returns the URL of the camera's latest JPEG snapshot.
func (c *Client) FrameURL(camera string) string {
	return fmt.Sprintf("%s/api/%s/latest.jpg", c.baseURL, url.PathEscape(camera))
}

// LatestFrame downloads the camera's latest snapshot as encoded JPEG bytes.
func (c *Client) LatestFrame(ctx context.Context, camera string) ([]byte, error) {
	body, err := c.get(ctx, c.FrameURL(camera), maxFrameSize)
	if err != nil {
		return nil, fmt.Errorf("latest frame for %s: %w", camera, err)
	}
	if len(body) == 0 {
		return nil, ErrNoFrame
	}
	return body, nil
}

// Cameras lists the camera names configured in Frigate, sorted.
func (c *Client) Cameras(ctx context.Context) ([]string, error) {
	var cfg struct {
		Cameras map[string]struct{} `json:"cameras"`
	}
	if err := doGetJSON(ctx, c, c.baseURL+"/api/config", &cfg); err != nil {
		return nil, fmt.Errorf("frigate config: %w", err)
	}

	names := make([]string, 0, len(cfg.Cameras))
	for name := range cfg.Cameras {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *Client) get(ctx context.Context, endpoint string, limit int64) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("could not send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}
	return body, nil
}
