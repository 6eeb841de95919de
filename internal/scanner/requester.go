package scanner

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/maxvaer/dirscan/internal/config"
)

// maxDrain caps how much of a response body is read before closing, so the
// connection can go back to the idle pool without downloading large files.
const maxDrain = 64 << 10

// Requester issues probes against absolute URLs and classifies the result.
type Requester struct {
	client    *http.Client
	headers   map[string]string
	userAgent string
}

// NewRequester creates a Requester from the provided options. threads sizes
// the idle connection pool.
func NewRequester(opts *config.Options, threads int) (*Requester, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout: timeout,
		}).DialContext,
		TLSHandshakeTimeout: timeout,
		MaxIdleConnsPerHost: threads,
		MaxIdleConns:        threads,
		IdleConnTimeout:     90 * time.Second,
	}
	if opts.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", opts.Proxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = config.DefaultMaxRedirects
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}

	return &Requester{
		client:    client,
		headers:   opts.Headers,
		userAgent: ua,
	}, nil
}

// Probe sends HEAD to targetURL and classifies the response. A 405 is retried
// once with GET; no other retries happen. Transport errors become
// OutcomeFailed.
func (r *Requester) Probe(ctx context.Context, targetURL string) Outcome {
	start := time.Now()
	out := r.classify(ctx, http.MethodHead, targetURL)
	if out.Kind == OutcomeFound && out.StatusCode == http.StatusMethodNotAllowed {
		out = r.classify(ctx, http.MethodGet, targetURL)
	}
	out.Duration = time.Since(start)
	return out
}

func (r *Requester) classify(ctx context.Context, method, targetURL string) Outcome {
	status, err := r.do(ctx, method, targetURL)
	switch {
	case err != nil:
		return Outcome{Kind: OutcomeFailed, URL: targetURL, Method: method, Err: err}
	case status == http.StatusNotFound:
		return Outcome{Kind: OutcomeNotFound, URL: targetURL, StatusCode: status, Method: method}
	default:
		return Outcome{Kind: OutcomeFound, URL: targetURL, StatusCode: status, Method: method, FoundAt: time.Now()}
	}
}

func (r *Requester) do(ctx context.Context, method, targetURL string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, targetURL, nil)
	if err != nil {
		return 0, err
	}

	req.Header.Set("User-Agent", r.userAgent)
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	// The status line already arrived; a truncated body does not change the
	// classification.
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
	return resp.StatusCode, nil
}

// CloseIdleConnections releases pooled connections once a session is done.
func (r *Requester) CloseIdleConnections() {
	r.client.CloseIdleConnections()
}
