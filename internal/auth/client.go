package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// OOBRedirect asks the instance to show the code instead of redirecting.
	OOBRedirect = "urn:ietf:wg:oauth:2.0:oob"
	// Scopes requested for the registered application.
	Scopes = "read"
)

// Registration is an application registered on an instance.
type Registration struct {
	Instance     string `json:"-"`
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	RedirectURI  string `json:"redirect_uri"`
}

// AuthorizeURL returns the page on which the user grants access.
func (r *Registration) AuthorizeURL() string {
	q := url.Values{}
	q.Set("client_id", r.ClientID)
	q.Set("redirect_uri", r.RedirectURI)
	q.Set("response_type", "code")
	q.Set("scope", Scopes)
	return r.Instance + "/oauth/authorize?" + q.Encode()
}

// Account is the subset of verify_credentials the worker reports.
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
}

// Client talks to the OAuth and account endpoints of an instance.
type Client struct {
	name      string
	userAgent string
	http      *http.Client
}

// NewClient creates a client that registers itself as name and identifies
// with userAgent.
func NewClient(name, userAgent string) *Client {
	return &Client{
		name:      name,
		userAgent: userAgent,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NormalizeInstance turns "example.social" or "https://example.social/" into
// a base URL without trailing slash.
func NormalizeInstance(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", fmt.Errorf("instance is empty")
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse instance %q: %w", s, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return "", fmt.Errorf("unsupported instance scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("instance %q has no host", s)
	}
	return u.Scheme + "://" + u.Host + strings.TrimRight(u.Path, "/"), nil
}

// Register creates an application on instance.
func (c *Client) Register(ctx context.Context, instance string) (*Registration, error) {
	base, err := NormalizeInstance(instance)
	if err != nil {
		return nil, err
	}
	form := url.Values{}
	form.Set("client_name", c.name)
	form.Set("redirect_uris", OOBRedirect)
	form.Set("scopes", Scopes)

	var reg Registration
	if err := c.postForm(ctx, base+"/api/v1/apps", form, &reg); err != nil {
		return nil, fmt.Errorf("register app: %w", err)
	}
	if reg.ClientID == "" {
		return nil, fmt.Errorf("register app: response has no client_id")
	}
	reg.Instance = base
	if reg.RedirectURI == "" {
		reg.RedirectURI = OOBRedirect
	}
	return &reg, nil
}

// ExchangeCode trades an authorization code for an access token.
func (c *Client) ExchangeCode(ctx context.Context, reg *Registration, code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", fmt.Errorf("authorization code is empty")
	}
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("client_id", reg.ClientID)
	form.Set("client_secret", reg.ClientSecret)
	form.Set("redirect_uri", reg.RedirectURI)
	form.Set("scope", Scopes)

	var tok struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := c.postForm(ctx, reg.Instance+"/oauth/token", form, &tok); err != nil {
		return "", fmt.Errorf("exchange code: %w", err)
	}
	if tok.AccessToken == "" {
		return "", fmt.Errorf("exchange code: response has no access_token")
	}
	return tok.AccessToken, nil
}

// VerifyCredentials returns the account token belongs to.
func (c *Client) VerifyCredentials(ctx context.Context, instance, token string) (*Account, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", instance+"/api/v1/accounts/verify_credentials", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	var acct Account
	if err := c.do(req, &acct); err != nil {
		return nil, fmt.Errorf("verify credentials: %w", err)
	}
	return &acct, nil
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", req.URL.Path, err)
	}
	return nil
}
