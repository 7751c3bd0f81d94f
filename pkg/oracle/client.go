// Package oracle talks to the external qualification service that checks
// whether a prospect is already a customer.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/leadscope/prospect-cli/internal/resilience"
)

const defaultTimeout = 45 * time.Second

// Client queries the qualification service for a single company.
type Client interface {
	Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error)
}

// LookupRequest identifies the company to check.
type LookupRequest struct {
	Company string `json:"empresa"`
	TaxID   string `json:"cnpj,omitempty"`
	Domain  string `json:"domain,omitempty"`
}

// LookupResponse is the service's verdict.
type LookupResponse struct {
	Success          bool       `json:"success"`
	Score            int        `json:"score"`
	Temperature      string     `json:"temperatura"`
	PlatformsChecked []string   `json:"plataformas_consultadas"`
	Evidence         []Evidence `json:"evidencias_encontradas"`
	ElapsedSeconds   float64    `json:"tempo_total_segundos"`
	Message          string     `json:"message"`
}

// Evidence is one signal the service found for the company.
type Evidence struct {
	Source      string `json:"fonte"`
	Description string `json:"descricao"`
}

// Option configures the client.
type Option func(*httpClient)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *httpClient) {
		c.http.Timeout = d
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithAPIKey sets the bearer token sent with each request.
func WithAPIKey(key string) Option {
	return func(c *httpClient) {
		c.apiKey = key
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	http    *http.Client
}

// NewClient creates a qualification service client for the given endpoint.
func NewClient(baseURL string, opts ...Option) Client {
	c := &httpClient{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: defaultTimeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "oracle: rate limit wait")
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "oracle: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "oracle: read response")
	}

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("oracle: unexpected status %d: %s", resp.StatusCode, string(respBody))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	var result LookupResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, eris.Wrap(err, "oracle: unmarshal response")
	}

	return &result, nil
}
