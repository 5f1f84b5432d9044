package procore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds the OAuth application settings and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	LoginURL     string
	APIURL       string
	FrontendURL  string
	// Timeout bounds every outbound call and a whole sync run.
	Timeout time.Duration
}

// Token is the result of a code exchange or refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	TokenType    string
	Scope        string
}

const defaultTokenLifetime = time.Hour

// OAuth talks to the Procore login service.
type OAuth struct {
	cfg  Config
	http *http.Client
	now  func() time.Time
}

func NewOAuth(cfg Config) *OAuth {
	return &OAuth{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		now:  time.Now,
	}
}

// AuthorizeURL builds the redirect target that starts the flow.
func (o *OAuth) AuthorizeURL(state string) string {
	q := url.Values{}
	q.Set("client_id", o.cfg.ClientID)
	q.Set("redirect_uri", o.cfg.RedirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	q.Set("scope", "read write")
	return strings.TrimRight(o.cfg.LoginURL, "/") + "/oauth/authorize?" + q.Encode()
}

// Exchange trades an authorization code for tokens. A rejected code
// (400/401/403) is ErrOAuth; anything else is ErrUpstream.
func (o *OAuth) Exchange(ctx context.Context, code string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", o.cfg.ClientID)
	form.Set("client_secret", o.cfg.ClientSecret)
	form.Set("redirect_uri", o.cfg.RedirectURI)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	tok, err := o.postToken(ctx, form, func(status int) *Error {
		switch status {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden:
			return ErrOAuth
		}
		return wrap(ErrUpstream, "Procore OAuth token exchange failed", nil)
	})
	return tok, err
}

// Refresh obtains a new access token. Procore may omit the refresh token in
// the response, in which case the old one stays valid.
func (o *OAuth) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	form := url.Values{}
	form.Set("client_id", o.cfg.ClientID)
	form.Set("client_secret", o.cfg.ClientSecret)
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	tok, err := o.postToken(ctx, form, func(status int) *Error {
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrAuthExpired
		case http.StatusBadRequest:
			return wrap(ErrOAuth, "Procore refresh token invalid", nil)
		}
		return wrap(ErrUpstream, "Procore token refresh failed", nil)
	})
	if err != nil {
		return tok, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (o *OAuth) postToken(ctx context.Context, form url.Values, classify func(int) *Error) (Token, error) {
	endpoint := strings.TrimRight(o.cfg.LoginURL, "/") + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := o.http.Do(req)
	if err != nil {
		return Token{}, wrap(ErrUpstream, "Failed to reach Procore OAuth", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		base := classify(resp.StatusCode)
		return Token{}, wrap(base, base.Message, fmt.Errorf("token endpoint returned %d", resp.StatusCode))
	}

	var body struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int    `json:"expires_in"`
		TokenType    string `json:"token_type"`
		Scope        string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Token{}, wrap(ErrUpstream, "Invalid Procore token response", err)
	}
	lifetime := defaultTokenLifetime
	if body.ExpiresIn > 0 {
		lifetime = time.Duration(body.ExpiresIn) * time.Second
	}
	tokenType := body.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return Token{
		AccessToken:  body.AccessToken,
		RefreshToken: body.RefreshToken,
		ExpiresAt:    o.now().UTC().Add(lifetime),
		TokenType:    tokenType,
		Scope:        body.Scope,
	}, nil
}
