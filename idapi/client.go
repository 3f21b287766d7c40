package idapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const defaultTimeout = 10 * time.Second

// Client talks to the provider's account management API. It is safe for
// concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
}

// ClientConfig configures a Client. BaseURL and APIToken are required.
type ClientConfig struct {
	BaseURL  string
	APIToken string
	Timeout  time.Duration

	// HTTPClient overrides the transport when set. Timeout is ignored in
	// that case.
	HTTPClient *http.Client
}

// NewClient builds a Client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("idapi: base URL is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("idapi: API token is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{httpClient: hc, baseURL: cfg.BaseURL, apiToken: cfg.APIToken}, nil
}

// GetUser fetches a user record by ID or by login identifier.
func (c *Client) GetUser(ctx context.Context, identifier string) (*User, error) {
	var user User
	path := "/api/v1/users/" + url.PathEscape(identifier)
	if err := c.do(ctx, http.MethodGet, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser applies a partial profile update to the user with the given ID.
func (c *Client) UpdateUser(ctx context.Context, userID string, update ProfileUpdate) (*User, error) {
	var user User
	path := "/api/v1/users/" + url.PathEscape(userID)
	body := map[string]any{"profile": update}
	if err := c.do(ctx, http.MethodPost, path, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ActivateUser starts activation for a staged user and returns the
// activation token without sending the provider's own activation email.
func (c *Client) ActivateUser(ctx context.Context, userID string) (*RecoveryToken, error) {
	var tok RecoveryToken
	path := "/api/v1/users/" + url.PathEscape(userID) + "/lifecycle/activate?sendEmail=false"
	if err := c.do(ctx, http.MethodPost, path, nil, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// ForgotPassword starts recovery for the user and returns a recovery token
// without sending the provider's own recovery email.
func (c *Client) ForgotPassword(ctx context.Context, userID string) (*RecoveryToken, error) {
	var tok RecoveryToken
	path := "/api/v1/users/" + url.PathEscape(userID) + "/credentials/forgot_password?sendEmail=false"
	if err := c.do(ctx, http.MethodPost, path, nil, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// ValidateRecoveryToken exchanges a recovery token for a state token. The
// recovery token is consumed whether or not a password is subsequently set.
func (c *Client) ValidateRecoveryToken(ctx context.Context, recoveryToken string) (*StateToken, error) {
	var tok StateToken
	body := map[string]string{"recoveryToken": recoveryToken}
	if err := c.do(ctx, http.MethodPost, "/api/v1/authn/recovery/token", body, &tok); err != nil {
		return nil, err
	}
	return &tok, nil
}

// ResetPassword sets a new password using a state token from
// ValidateRecoveryToken. On success the provider mints a session token for
// the now-recovered account.
func (c *Client) ResetPassword(ctx context.Context, stateToken, newPassword string) (string, error) {
	body := map[string]any{
		"stateToken":  stateToken,
		"newPassword": newPassword,
	}
	var out struct {
		SessionToken string `json:"sessionToken"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/authn/credentials/reset_password", body, &out); err != nil {
		return "", err
	}
	return out.SessionToken, nil
}

// GetUserGroups lists the groups the user belongs to.
func (c *Client) GetUserGroups(ctx context.Context, userID string) ([]Group, error) {
	var groups []Group
	path := "/api/v1/users/" + url.PathEscape(userID) + "/groups"
	if err := c.do(ctx, http.MethodGet, path, nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "SSWS "+c.apiToken)
	req.Header.Set("X-Correlation-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return ErrUpstreamRateLimited
	case resp.StatusCode >= 400:
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Code != "" {
			return classify(apiErr)
		}
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func classify(apiErr apiError) error {
	switch apiErr.Code {
	case "E0000105", "E0000011":
		return ErrInvalidToken
	case "E0000047":
		return ErrUpstreamRateLimited
	default:
		return fmt.Errorf("%w: %s %s", ErrUnavailable, apiErr.Code, apiErr.Summary)
	}
}
