// Package fetch downloads and verifies server artifacts and resolves desired
// items to download targets through the registered providers.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/cenk/backoff"
	"github.com/rs/dnscache"

	"github.com/git-pkgs/provision/internal/core"
)

var (
	// ErrNotFound matches a missing artifact. The error itself is a
	// *core.NotFoundError naming the host and file.
	ErrNotFound = core.ErrNotFound
	// ErrRateLimited matches a 429 from the artifact host.
	ErrRateLimited = errors.New("rate limited by upstream")
	// ErrUpstreamDown matches 5xx responses and open circuit breakers.
	ErrUpstreamDown = errors.New("upstream host unavailable")
)

// StatusError is a download answered with an unexpected HTTP status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Unwrap maps retryable statuses to ErrRateLimited and ErrUpstreamDown.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= 500:
		return ErrUpstreamDown
	}
	return nil
}

// Artifact is an open download. Body must be closed by the caller.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// FetcherInterface is implemented by Fetcher and CircuitBreakerFetcher.
type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*Artifact, error)
	Head(ctx context.Context, url string) (size int64, contentType string, err error)
}

// Fetcher downloads server and plugin jars.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	authFn     func(url string) (headerName, headerValue string)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the DNS caching client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets how often a rate limited or failing download is retried.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the first backoff interval between retries.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithAuthFunc sets a function returning the auth header for a link.
// Empty strings send no header.
func WithAuthFunc(fn func(url string) (headerName, headerValue string)) Option {
	return func(f *Fetcher) {
		f.authFn = fn
	}
}

// NewFetcher creates a fetcher. Jars are downloaded once unless
// WithMaxRetries is set.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout:   10 * time.Minute,
			Transport: cachingTransport(5 * time.Minute),
		},
		userAgent: "provision/1.0",
		baseDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// cachingTransport dials through a DNS cache refreshed every interval.
// Artifact hosts are few and hit repeatedly within a pass.
func cachingTransport(interval time.Duration) *http.Transport {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			host, port, err := net.SplitHostPort(addr)
			if err != nil {
				return nil, err
			}
			ips, err := resolver.LookupHost(ctx, host)
			if err != nil {
				return nil, err
			}
			var lastErr error
			for _, ip := range ips {
				conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
				if err == nil {
					return conn, nil
				}
				lastErr = err
			}
			return nil, fmt.Errorf("dialing %s: %w", host, lastErr)
		},
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Fetch opens a download of link. Only ErrRateLimited and ErrUpstreamDown
// are retried.
func (f *Fetcher) Fetch(ctx context.Context, link string) (*Artifact, error) {
	var (
		artifact *Artifact
		terminal error
	)

	op := func() error {
		a, err := f.get(ctx, link)
		if err == nil {
			artifact = a
			return nil
		}
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
			return err
		}
		terminal = err
		return nil
	}

	if err := backoff.Retry(op, f.policy(ctx)); err != nil {
		return nil, err
	}
	if terminal != nil {
		return nil, terminal
	}
	return artifact, nil
}

func (f *Fetcher) get(ctx context.Context, link string) (*Artifact, error) {
	req, err := f.newRequest(ctx, http.MethodGet, link)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/java-archive, */*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", link, err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, statusError(http.MethodGet, link, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return &Artifact{
		Body:        resp.Body,
		Size:        contentLength(resp.Header),
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
	}, nil
}

// Head returns the size and content type of link without downloading it.
func (f *Fetcher) Head(ctx context.Context, link string) (size int64, contentType string, err error) {
	req, err := f.newRequest(ctx, http.MethodHead, link)
	if err != nil {
		return 0, "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("head %s: %w", link, err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, "", statusError(http.MethodHead, link, resp.StatusCode, "")
	}
	return contentLength(resp.Header), resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) newRequest(ctx context.Context, method, link string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, link, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	if f.authFn != nil {
		if name, value := f.authFn(link); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}
	return req, nil
}

func (f *Fetcher) policy(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = f.baseDelay
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0
	exp.Reset()

	retries := f.maxRetries
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)
}

// statusError turns a non-200 response into an error. A 404 names the
// missing file so the item report reads like a resolution miss.
func statusError(method, link string, status int, body string) error {
	if status == http.StatusNotFound {
		host, file := link, link
		if u, err := url.Parse(link); err == nil && u.Host != "" {
			host, file = u.Host, path.Base(u.Path)
		}
		return &core.NotFoundError{Provider: host, Name: file}
	}
	return &StatusError{Method: method, URL: link, StatusCode: status, Body: body}
}

func contentLength(h http.Header) int64 {
	if cl := h.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n
		}
	}
	return -1
}
