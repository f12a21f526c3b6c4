// Package httpclient is the default ServiceClient: it turns a
// model.Request into a net/http round trip against the service under
// test, applying auth, rate limiting, retry and response decompression.
// Grounded on the teacher's internal/executor.TestExecutor (timeout,
// retry-with-delay, buildRequest/executeTest shape).
package httpclient

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"apiconform/internal/config"
	"apiconform/internal/model"
)

// RetryConfig mirrors the teacher's executor.RetryConfig.
type RetryConfig struct {
	Attempts int
	Delay    time.Duration
}

// Client is the default ServiceClient implementation.
type Client struct {
	httpClient *http.Client
	baseURL    string
	auth       config.AuthConfig
	limiter    *rate.Limiter
	retry      RetryConfig
}

// New builds a Client from ServiceConfig. A cookie jar scoped by the
// public suffix list is always attached so Set-Cookie round-trips behave
// like a real browser/client session across requests in one run.
func New(cfg config.ServiceConfig, retry RetryConfig) (*Client, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("apiconform/httpclient: cookie jar: %w", err)
	}

	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), 1)
	}

	if retry.Attempts <= 0 {
		retry.Attempts = 1
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout, Jar: jar},
		baseURL:    cfg.BaseURL,
		auth:       cfg.Auth,
		limiter:    limiter,
		retry:      retry,
	}, nil
}

// Send issues req against the service under test, retrying transient
// failures up to c.retry.Attempts times with c.retry.Delay between
// attempts, and returns the decoded model.Response.
func (c *Client) Send(ctx context.Context, req *model.Request) (*model.Response, error) {
	var lastErr error
	for attempt := 0; attempt < c.retry.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retry.Delay):
			}
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		resp, err := c.sendOnce(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (c *Client) sendOnce(ctx context.Context, req *model.Request) (*model.Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("apiconform/httpclient: build request: %w", err)
	}
	for _, kv := range req.Headers {
		httpReq.Header.Add(kv.Key, kv.Value)
	}
	httpReq.Header.Set("Accept-Encoding", "gzip, br")

	if err := c.applyAuth(httpReq); err != nil {
		return nil, err
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	rawBody, err := decodeBody(httpResp)
	if err != nil {
		return nil, fmt.Errorf("apiconform/httpclient: decode body: %w", err)
	}

	return &model.Response{
		StatusCode:  httpResp.StatusCode,
		Headers:     headersToKV(httpResp.Header),
		Body:        rawBody,
		ContentType: httpResp.Header.Get("Content-Type"),
	}, nil
}

func (c *Client) applyAuth(httpReq *http.Request) error {
	switch c.auth.Type {
	case "bearer":
		if c.auth.Token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.auth.Token)
		}
	case "jwt":
		token, err := mintJWT(c.auth)
		if err != nil {
			return err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	return nil
}

// mintJWT signs a short-lived bearer token; applyAuth calls it for every
// request sent, rather than reusing a long-lived static token.
func mintJWT(auth config.AuthConfig) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": auth.JWTSubject,
		"iat": now.Unix(),
		"exp": now.Add(5 * time.Minute).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(auth.JWTSecret))
	if err != nil {
		return "", fmt.Errorf("apiconform/httpclient: mint jwt: %w", err)
	}
	return signed, nil
}

func decodeBody(resp *http.Response) ([]byte, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		return io.ReadAll(brotli.NewReader(resp.Body))
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, err
		}
		defer gz.Close()
		return io.ReadAll(gz)
	default:
		return io.ReadAll(resp.Body)
	}
}

func headersToKV(h http.Header) []model.KV {
	var out []model.KV
	for key, values := range h {
		for _, v := range values {
			out = append(out, model.KV{Key: key, Value: v})
		}
	}
	return out
}
