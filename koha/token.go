package koha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Alban-Peyrat/Koha-API-interface/apierr"
)

const (
	tokenKey = "token"
	// tokens are dropped this long before Koha expires them
	tokenMargin = 60 * time.Second
	// Koha issues tokens for an hour unless told otherwise
	defaultTokenLifetime = 3600
)

// Token is an OAuth2 access token.
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error,omitempty"`
}

func (t Token) header() string {
	typ := t.TokenType
	if strings.EqualFold(typ, "bearer") {
		typ = "Bearer"
	}
	return typ + " " + t.AccessToken
}

// Token returns a cached access token, or requests a new one with the
// client credentials grant.
func (c *Client) Token(ctx context.Context) (Token, error) {
	if item := c.tokens.Get(tokenKey); item != nil {
		return item.Value(), nil
	}
	tok, err := c.fetchToken(ctx)
	if err != nil {
		return Token{}, err
	}
	lifetime := tok.ExpiresIn
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	ttl := time.Duration(lifetime)*time.Second - tokenMargin
	if ttl > 0 {
		c.tokens.Set(tokenKey, tok, ttl)
	}
	return tok, nil
}

func (c *Client) fetchToken(ctx context.Context) (Token, error) {
	const op = "token"
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)

	req, err := newRequest(http.MethodPost, c.url("/api/v1/oauth/token"), strings.NewReader(form.Encode()),
		"application/x-www-form-urlencoded", "application/json")
	if err != nil {
		return Token{}, errors.Wrap(err, op)
	}
	resp, err := c.send(ctx, op, req, false)
	if err != nil {
		switch apierr.StatusOf(err) {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return Token{}, apierr.Wrap(apierr.AuthenticationFailed, op, err)
		}
		return Token{}, err
	}
	var tok Token
	if err := json.Unmarshal(resp.Body, &tok); err != nil {
		return Token{}, apierr.Wrap(apierr.AuthenticationFailed, op, errors.Wrap(err, "decode token"))
	}
	switch {
	case tok.Error != "":
		return Token{}, apierr.New(apierr.AuthenticationFailed, op, tok.Error)
	case tok.AccessToken == "" || tok.TokenType == "":
		return Token{}, apierr.New(apierr.AuthenticationFailed, op, "response carries no access_token or token_type")
	}
	c.log.WithField("op", op).Debug("access authorized")
	return tok, nil
}
