package hooks

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lazypower/psyche/internal/config"
)

// Client talks to the psyche server.
type Client struct {
	http      *http.Client
	serverURL string
}

// NewClient creates a new hook HTTP client from the hooks config
// (PSYCHE_URL, PSYCHE_HOOK_TIMEOUT).
func NewClient(cfg config.HooksConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		http:      &http.Client{Timeout: timeout},
		serverURL: cfg.ServerURL,
	}
}

// Post sends a POST request with JSON body. Returns response body.
func (c *Client) Post(path string, body []byte) ([]byte, error) {
	resp, err := c.http.Post(c.serverURL+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response %s: %w", path, err)
	}
	if resp.StatusCode >= 400 {
		return data, fmt.Errorf("POST %s: status %d: %s", path, resp.StatusCode, data)
	}
	return data, nil
}

// Healthy checks if the server is reachable.
func (c *Client) Healthy() bool {
	resp, err := c.http.Get(c.serverURL + "/api/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
