// Package koha wraps the Koha web APIs: REST (OAuth2 client credentials),
// the legacy SVC/CGI interface, the JSON reports service and SRU.
//
// A Client never mutates its configuration. Every call returns its own
// outcome, so a Client can be shared between goroutines.
package koha

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
	"github.com/Alban-Peyrat/Koha-API-interface/config"
	"github.com/Alban-Peyrat/Koha-API-interface/logging"
	"github.com/Alban-Peyrat/Koha-API-interface/sru"
	"github.com/Alban-Peyrat/Koha-API-interface/transport"
)

// Config holds the endpoint and credentials of a Koha instance.
type Config struct {
	// URL is the staff interface base URL, without trailing slash.
	URL string
	// SRUURL defaults to URL + "/biblios".
	SRUURL       string
	ClientID     string
	ClientSecret string
	UserID       string
	Password     string
}

// Client talks to one Koha instance.
type Client struct {
	cfg    Config
	req    transport.Requester
	log    logrus.FieldLogger
	tokens *ttlcache.Cache[string, Token]
}

// New returns a client. A nil log falls back to the logrus standard logger.
func New(cfg Config, r transport.Requester, log logrus.FieldLogger) *Client {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.SRUURL == "" {
		cfg.SRUURL = cfg.URL + "/biblios"
	}
	return &Client{
		cfg: cfg,
		req: r,
		log: log,
		tokens: ttlcache.New[string, Token](
			ttlcache.WithDisableTouchOnHit[string, Token](),
		),
	}
}

// FromConfig builds a client and its HTTP stack from loaded settings.
func FromConfig(c config.Config, log logrus.FieldLogger) *Client {
	opts := transport.Options{
		Timeout:   c.HTTP.Timeout,
		UserAgent: c.HTTP.UserAgent,
		RPS:       c.HTTP.RPS,
		Burst:     c.HTTP.Burst,
	}
	r := transport.Requester{
		Doer:      transport.NewClient(opts),
		Limiter:   transport.NewLimiter(opts),
		UserAgent: opts.UserAgent,
	}
	return New(Config{
		URL:          c.Koha.URL,
		SRUURL:       c.Koha.SRUURL,
		ClientID:     c.Koha.ClientID,
		ClientSecret: c.Koha.ClientSecret,
		UserID:       c.Koha.UserID,
		Password:     c.Koha.Password,
	}, r, log)
}

// Config returns a copy of the client configuration.
func (c *Client) Config() Config {
	return c.cfg
}

// SRU returns a client for the configured SRU endpoint.
func (c *Client) SRU() *sru.Client {
	return sru.NewClient(c.cfg.SRUURL, c.req, c.log)
}

func (c *Client) url(path string) string {
	return c.cfg.URL + path
}

func newRequest(method, link string, body io.Reader, contentType, accept string) (*http.Request, error) {
	req, err := http.NewRequest(method, link, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req, nil
}

// send executes req. With auth set, a bearer token is attached and a 401
// is reported as AuthenticationFailed.
func (c *Client) send(ctx context.Context, op string, req *http.Request, auth bool) (*transport.Response, error) {
	if auth {
		tok, err := c.Token(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", tok.header())
	}
	started := time.Now()
	resp, err := c.req.Do(ctx, op, req)
	log := c.log.WithFields(logrus.Fields{
		"op":     op,
		"method": req.Method,
		"url":    logging.Redact(req.URL.String()),
		"took":   time.Since(started),
	})
	if err != nil {
		log.WithField("status", apierr.StatusOf(err)).Error(err)
		if auth && apierr.StatusOf(err) == http.StatusUnauthorized {
			c.tokens.Delete(tokenKey)
			return nil, apierr.Wrap(apierr.AuthenticationFailed, op, err)
		}
		return nil, err
	}
	log.WithField("status", resp.Status).Debug("success")
	return resp, nil
}

// notFound rewrites a 404 into a message naming the record.
func notFound(err error, op, what string) error {
	if errors.Is(err, apierr.ErrNotFound) {
		return &apierr.Error{Kind: apierr.NotFound, Op: op, Status: http.StatusNotFound, Msg: what + " does not exist"}
	}
	return err
}
