// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// UserAgent is sent on every outbound request that does not set its own.
const UserAgent = "peer-review/1.0"

// Client is the outbound HTTP client shared by provider SDKs. It satisfies
// the Do-only interfaces those SDKs accept.
type Client struct {
	httpClient *http.Client
}

// NewClient builds a client. A zero timeout relies on the request context only.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	return c.httpClient.Do(req)
}
