package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"AlertFuse/internal/service/retry"
	apphttp "AlertFuse/pkg/http"
)

// fetcher is the shared paced HTTP base for the pull sources. The
// limiter spaces outbound calls so a burst of overlapping jobs cannot
// hammer a provider into rate limiting us.
type fetcher struct {
	client  *apphttp.Client
	limiter *rate.Limiter
	apiKey  string
}

func newFetcher(apiKey string, rps float64, burst int, client *apphttp.Client) *fetcher {
	if rps <= 0 {
		rps = 2
	}
	if burst <= 0 {
		burst = 1
	}
	if client == nil {
		client = apphttp.NewClient(apphttp.WithTimeout(15 * time.Second))
	}
	return &fetcher{
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
		apiKey:  apiKey,
	}
}

// getJSON performs one paced GET and decodes the body. Upstream status
// codes map onto the retry taxonomy.
func (f *fetcher) getJSON(ctx context.Context, url string, query map[string][]string, dest interface{}) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	headers := map[string]string{"Accept": "application/json"}
	if f.apiKey != "" {
		headers["Authorization"] = "Bearer " + f.apiKey
	}

	resp, err := f.client.SendRequest(ctx, &apphttp.RequestOptions{
		Method:      apphttp.MethodGet,
		URL:         url,
		Headers:     headers,
		QueryParams: query,
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		if d := parseRetryAfterHeader(resp.Header.Get("Retry-After")); d > 0 {
			return &retry.RateLimitedError{RetryAfterDelay: d}
		}
		return &retry.HTTPError{Status: resp.StatusCode, Msg: "provider rate limited"}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &retry.HTTPError{Status: resp.StatusCode, Msg: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// getRaw performs one paced GET and returns the body bytes.
func (f *fetcher) getRaw(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	resp, err := f.client.SendRequest(ctx, &apphttp.RequestOptions{
		Method: apphttp.MethodGet,
		URL:    url,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &retry.HTTPError{Status: resp.StatusCode}
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func parseRetryAfterHeader(v string) time.Duration {
	if v == "" {
		return 0
	}
	var secs int
	if _, err := fmt.Sscanf(v, "%d", &secs); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
