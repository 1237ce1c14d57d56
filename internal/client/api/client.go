// Package api is the HTTP client for the inventory API. It attaches the
// bearer token, decodes responses and maps failures onto a small error
// taxonomy. It never clears the session itself: reacting to ErrUnauthorized
// is the caller's job.
package api

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	pathLogin       = "/users/login"
	pathLogout      = "/users/logout"
	pathUsers       = "/users"
	pathAllUsers    = "/users/get/all"
	pathProducts    = "/products"
	headerRequestID = "X-Request-ID"
	userAgent       = "inventaris-console/1.0"
	maxBodyBytes    = 10 << 20
)

// TokenSource supplies the current bearer token.
type TokenSource interface {
	Token() (string, bool)
}

// Options configures a Client.
type Options struct {
	BaseURL            string
	Timeout            time.Duration
	InsecureSkipVerify bool
	CAFile             string
	// HTTPClient overrides the transport built from the fields above.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client talks to the inventory API.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	log     *zap.Logger
}

// New returns a Client for opts.BaseURL. tokens may be nil for a client that
// only logs in.
func New(opts Options, tokens TokenSource) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	u, err := url.Parse(opts.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		hc, err = NewHTTPClient(opts.Timeout, opts.InsecureSkipVerify, opts.CAFile)
		if err != nil {
			return nil, err
		}
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    hc,
		tokens:  tokens,
		log:     log.Named("api"),
	}, nil
}

// NewHTTPClient builds the transport: system roots plus an optional CA
// bundle, and optionally no certificate verification at all.
func NewHTTPClient(timeout time.Duration, insecure bool, caFile string) (*http.Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	tlsCfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: insecure, //nolint:gosec
	}
	if caFile != "" {
		caCert, err := os.ReadFile(caFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, errors.New("failed to parse CA cert")
		}
		tlsCfg.RootCAs = pool
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		TLSClientConfig:     tlsCfg,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}

// request is a single API call.
type request struct {
	method      string
	path        string
	body        io.Reader
	contentType string
	// anonymous calls never carry a token.
	anonymous bool
}

// response is a received 2xx or non-2xx reply with its body read.
type response struct {
	status int
	body   []byte
}

func (c *Client) send(ctx context.Context, r request) (*response, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("build %s %s: %w", r.method, r.path, err)
	}
	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set(headerRequestID, reqID)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if !r.anonymous && c.tokens != nil {
		if tok, ok := c.tokens.Token(); ok {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("api call failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.String("request_id", reqID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", r.method, r.path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s %s: read body: %w", r.method, r.path, err)
	}
	c.log.Debug("api call",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("duration", time.Since(start)),
	)
	return &response{status: resp.StatusCode, body: body}, nil
}

// call sends r and returns the body of a 2xx reply. Any other status becomes
// a *StatusError.
func (c *Client) call(ctx context.Context, r request) ([]byte, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status > 299 {
		se := &StatusError{
			Method:     r.method,
			Path:       r.path,
			StatusCode: resp.status,
			Message:    serverMessage(resp.body),
		}
		if resp.status == http.StatusUnauthorized {
			c.log.Warn("unauthorized response", zap.String("method", r.method), zap.String("path", r.path))
		}
		return nil, se
	}
	return resp.body, nil
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}
	return bytes.NewReader(b), nil
}

func escaped(base, id string) string {
	return base + "/" + url.PathEscape(id)
}
