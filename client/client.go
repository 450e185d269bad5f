package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultTimeout = 10 * time.Second
)

// ErrNotConfigured is returned when no rewrite endpoint is set.
// Masking must fail explicitly instead of fabricating content.
var ErrNotConfigured = errors.New("rewrite service not configured")

// Client talks to the external semantic rewrite service.
type Client struct {
	client   *http.Client
	endpoint string
}

func New(endpoint string) *Client {
	return &Client{
		client: &http.Client{
			Timeout: defaultTimeout,
		},
		endpoint: endpoint,
	}
}

type maskRequest struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

type maskResponse struct {
	Masked string `json:"masked"`
	Error  string `json:"error,omitempty"`
}

// Mask asks the rewrite service for a short de-identified paraphrase
// of content, phrased for the given role. Output is not stable across
// calls; callers cache per viewing session.
func (c *Client) Mask(ctx context.Context, content string, role string) (string, error) {
	if c.endpoint == "" {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(maskRequest{Content: content, Role: role})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode mask request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "failed to create mask request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "rewrite service unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read mask response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("rewrite service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response maskResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", errors.Wrap(err, "failed to decode mask response")
	}
	if response.Error != "" {
		return "", fmt.Errorf("rewrite service error: %s", response.Error)
	}

	masked := strings.TrimSpace(response.Masked)
	if masked == "" {
		return "", fmt.Errorf("rewrite service returned an empty mask")
	}

	return masked, nil
}
