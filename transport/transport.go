// Package transport builds the HTTP client shared by the Koha and SRU
// clients and turns transport and status failures into apierr kinds.
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/sethgrid/pester"
	"golang.org/x/time/rate"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
)

// Doer executes HTTP requests. Both *http.Client and *pester.Client satisfy
// it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Options tune the HTTP client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RPS limits requests per second, zero disables the limit.
	RPS   float64
	Burst int
}

// NewClient returns a pester client that performs exactly one attempt per
// request. Failures are reported to the caller, never retried.
func NewClient(opts Options) *pester.Client {
	hc := &http.Client{
		Timeout: opts.Timeout,
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   30 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          25,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		},
		CheckRedirect: redirectPolicyFunc,
	}
	client := pester.NewExtendedClient(hc)
	client.Concurrency = 1
	client.MaxRetries = 1
	client.Backoff = pester.DefaultBackoff
	client.KeepLog = false
	return client
}

func redirectPolicyFunc(req *http.Request, via []*http.Request) error {
	if len(via) >= 2 {
		return fmt.Errorf("attempted redirect to %s", req.URL)
	}
	return nil
}

// NewLimiter returns a limiter for opts, or nil when unlimited.
func NewLimiter(opts Options) *rate.Limiter {
	if opts.RPS <= 0 {
		return nil
	}
	burst := opts.Burst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(opts.RPS), burst)
}

// Response is a fully read HTTP response.
type Response struct {
	Status      int
	ContentType string
	Header      http.Header
	Cookies     []*http.Cookie
	Body        []byte
}

// Requester executes requests through a Doer, honoring an optional limiter
// and user agent.
type Requester struct {
	Doer      Doer
	Limiter   *rate.Limiter
	UserAgent string
}

// Do sends req and reads the whole body. A failure to connect or read is a
// Transport error, a non 2xx status an HTTPStatus (or NotFound) error whose
// message is the response body.
func (r Requester) Do(ctx context.Context, op string, req *http.Request) (*Response, error) {
	if r.Limiter != nil {
		if err := r.Limiter.Wait(ctx); err != nil {
			return nil, apierr.Wrap(apierr.Transport, op, err)
		}
	}
	req = req.WithContext(ctx)
	if r.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", r.UserAgent)
	}
	resp, err := r.Doer.Do(req)
	if err != nil {
		return nil, apierr.Wrap(apierr.Transport, op, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Wrap(apierr.Transport, op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierr.Status(op, resp.StatusCode, truncate(string(body), 512))
	}
	return &Response{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Header:      resp.Header,
		Cookies:     resp.Cookies(),
		Body:        body,
	}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
