package doubletake

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// maxBodySize bounds how much of a recognition response is read.
const maxBodySize = 4 << 20

// Client queries Double-Take for the faces in a camera's latest frame.
type Client struct {
	baseURL    string
	frameURL   func(camera string) string
	timeout    time.Duration
	httpClient *http.Client
}

// NewClient creates a client for the Double-Take instance at baseURL.
// frameURL builds the image URL Double-Take should fetch for a camera,
// normally Frigate's latest.jpg endpoint.
func NewClient(baseURL string, frameURL func(camera string) string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		frameURL:   frameURL,
		timeout:    timeout,
		httpClient: &http.Client{},
	}
}

// Recognize asks Double-Take to run recognition on the camera's current
// frame. The returned response keeps the raw body in Raw.
func (c *Client) Recognize(ctx context.Context, camera string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	q := url.Values{}
	q.Set("url", c.frameURL(camera))
	q.Set("attempts", "1")
	q.Set("camera", camera)
	endpoint := c.baseURL + "/api/recognize?" + q.Encode()

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
		return nil, fmt.Errorf("recognize failed with status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}

	var result Response
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("could not unmarshal response: %w", err)
	}
	result.Raw = json.RawMessage(body)

	return &result, nil
}
