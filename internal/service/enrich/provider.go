package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"AlertFuse/internal/service/retry"
	apphttp "AlertFuse/pkg/http"
)

// HTTPProvider talks to the scoring API. Non-2xx responses are mapped
// onto the retry error taxonomy so the executor can classify them.
type HTTPProvider struct {
	client *apphttp.Client
	base   string
	apiKey string
	model  string
}

type HTTPProviderOption func(*HTTPProvider)

func WithModel(model string) HTTPProviderOption {
	return func(p *HTTPProvider) { p.model = model }
}

func WithHTTPClient(c *apphttp.Client) HTTPProviderOption {
	return func(p *HTTPProvider) { p.client = c }
}

func NewHTTPProvider(baseURL, apiKey string, opts ...HTTPProviderOption) *HTTPProvider {
	p := &HTTPProvider{
		base:   baseURL,
		apiKey: apiKey,
		model:  "default",
	}
	for _, o := range opts {
		o(p)
	}
	if p.client == nil {
		p.client = apphttp.NewClient(apphttp.WithTimeout(20 * time.Second))
	}
	return p
}

type analyzeRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
}

func (p *HTTPProvider) Analyze(ctx context.Context, text string) (*Scores, error) {
	resp, err := p.client.SendRequest(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodPost,
		URL:    p.base + "/v1/analyze",
		Headers: map[string]string{
			"Authorization": "Bearer " + p.apiKey,
			"Content-Type":  "application/json",
		},
		Body: analyzeRequest{Model: p.model, Text: text},
	})
	if err != nil {
		return nil, fmt.Errorf("enrichment request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if d := parseRetryAfter(resp.Header.Get("Retry-After")); d > 0 {
			return nil, &retry.RateLimitedError{RetryAfterDelay: d}
		}
		return nil, &retry.HTTPError{Status: resp.StatusCode, Msg: "provider rate limited"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.HTTPError{Status: resp.StatusCode, Msg: string(body)}
	}

	var scores Scores
	if err := json.NewDecoder(resp.Body).Decode(&scores); err != nil {
		return nil, fmt.Errorf("decode enrichment response: %w", err)
	}
	return &scores, nil
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
