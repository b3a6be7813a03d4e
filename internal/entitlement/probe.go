package entitlement

import (
	"context"
	"net"
	"net/http"
	"time"
)

const probeTimeout = 10 * time.Second

// ToolProbe is the outcome of a reachability check against a tool's launch URL.
type ToolProbe struct {
	ToolID     string `json:"tool_id"`
	URL        string `json:"url"`
	Method     string `json:"method"`
	StatusCode int    `json:"status_code,omitempty"`
	Healthy    bool   `json:"healthy"`
	LatencyMS  int64  `json:"latency_ms"`
	Error      string `json:"error,omitempty"`
}

// ToolProber issues single-shot HEAD requests, falling back to GET for
// servers that refuse HEAD. Redirects are reported, not followed.
type ToolProber struct {
	client *http.Client
}

func NewToolProber(client *http.Client) *ToolProber {
	if client == nil {
		client = &http.Client{
			Timeout: probeTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   probeTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: probeTimeout,
			},
		}
	}
	// Copy so the caller's client keeps its own redirect policy.
	c := *client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	if c.Timeout == 0 {
		c.Timeout = probeTimeout
	}
	return &ToolProber{client: &c}
}

func (p *ToolProber) Probe(ctx context.Context, url, apiKey string) *ToolProbe {
	result := &ToolProbe{URL: url, Method: http.MethodHead}
	start := time.Now()

	status, err := p.do(ctx, http.MethodHead, url, apiKey)
	if err == nil && (status == http.StatusMethodNotAllowed || status == http.StatusNotImplemented) {
		result.Method = http.MethodGet
		status, err = p.do(ctx, http.MethodGet, url, apiKey)
	}
	result.LatencyMS = time.Since(start).Milliseconds()

	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.StatusCode = status
	result.Healthy = status >= 200 && status < 400
	return result
}

func (p *ToolProber) do(ctx context.Context, method, url, apiKey string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", "ai-portal/1.0 (tool health check)")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}
