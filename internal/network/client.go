// Package network is the browser-profile HTTP client used to follow alert
// tracking links and fetch posting pages.
package network

import (
	"context"
	"errors"
	"fmt"
	"io"

	fhttp "github.com/bogdanfinn/fhttp"
	fhttpcookiejar "github.com/bogdanfinn/fhttp/cookiejar"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
)

// ErrRequestFailed wraps every non-2xx/3xx page fetch.
var ErrRequestFailed = errors.New("request failed")

const (
	defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxBodyBytes     = 5 << 20
)

// Doer sends a request. tls_client.HttpClient satisfies it.
type Doer interface {
	Do(req *fhttp.Request) (*fhttp.Response, error)
}

type Client struct {
	http      Doer
	userAgent string
}

// NewClient builds a Chrome-profile client that follows redirects and keeps
// cookies between requests.
func NewClient(timeoutSeconds int) (*Client, error) {
	jar, err := fhttpcookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	client, err := tls_client.NewHttpClient(
		tls_client.NewNoopLogger(),
		tls_client.WithClientProfile(profiles.Chrome_120),
		tls_client.WithTimeoutSeconds(timeoutSeconds),
		tls_client.WithCookieJar(jar),
	)
	if err != nil {
		return nil, fmt.Errorf("create http client: %w", err)
	}
	return NewClientWith(client), nil
}

// NewClientWith wraps an existing Doer.
func NewClientWith(d Doer) *Client {
	return &Client{http: d, userAgent: defaultUserAgent}
}

func (c *Client) do(ctx context.Context, target string) (*fhttp.Response, error) {
	req, err := fhttp.NewRequestWithContext(ctx, fhttp.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("user-agent", c.userAgent)
	req.Header.Set("accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("accept-language", "en-GB,en;q=0.9")
	return c.http.Do(req)
}

// Resolve follows target's redirect chain and returns the URL it ended on.
// The status of the last response is not checked; block pages still carry
// the destination URL.
func (c *Client) Resolve(ctx context.Context, target string) (string, error) {
	resp, err := c.do(ctx, target)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String(), nil
	}
	return target, nil
}

// Get fetches target and returns the body and the final URL.
func (c *Client) Get(ctx context.Context, target string) ([]byte, string, error) {
	resp, err := c.do(ctx, target)
	if err != nil {
		return nil, "", fmt.Errorf("get %s: %w", target, err)
	}
	defer resp.Body.Close()

	final := target
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}
	if resp.StatusCode >= 400 {
		return nil, final, fmt.Errorf("%w: http %d from %s", ErrRequestFailed, resp.StatusCode, final)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, final, fmt.Errorf("read %s: %w", final, err)
	}
	return body, final, nil
}
