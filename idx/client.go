package idx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const defaultTimeout = 10 * time.Second

// Client talks to the identity provider's step-based interaction API. All
// methods take the state handle explicitly; the client itself holds no
// per-interaction state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
	limiter    *rate.Limiter
}

// ClientConfig configures a Client. BaseURL and APIToken are required.
type ClientConfig struct {
	BaseURL  string
	APIToken string

	// Timeout bounds each request including the single retry. Defaults to
	// 10s when zero.
	Timeout time.Duration

	// MaxRequestsPerSecond caps outbound request rate; zero disables the
	// cap.
	MaxRequestsPerSecond int

	// HTTPClient overrides the transport when set. Timeout is ignored in
	// that case.
	HTTPClient *http.Client
}

// NewClient builds a Client from cfg.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("idx: base URL is required")
	}
	if cfg.APIToken == "" {
		return nil, fmt.Errorf("idx: API token is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	var lim *rate.Limiter
	if cfg.MaxRequestsPerSecond > 0 {
		lim = rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), cfg.MaxRequestsPerSecond)
	}
	return &Client{
		httpClient: hc,
		baseURL:    cfg.BaseURL,
		apiToken:   cfg.APIToken,
		limiter:    lim,
	}, nil
}

// Interact opens a new interaction and returns its handle.
func (c *Client) Interact(ctx context.Context) (*InteractResponse, error) {
	var out InteractResponse
	if err := c.post(ctx, "/idp/idx/interact", map[string]string{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Introspect exchanges an interaction handle for a state handle.
func (c *Client) Introspect(ctx context.Context, interactionHandle string) (*IntrospectResponse, error) {
	var out IntrospectResponse
	body := map[string]string{"interactionHandle": interactionHandle}
	if err := c.post(ctx, "/idp/idx/introspect", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Identify submits the account identifier for the interaction.
func (c *Client) Identify(ctx context.Context, stateHandle, identifier string) (*IdentifyResponse, error) {
	var out IdentifyResponse
	body := map[string]string{
		"stateHandle": stateHandle,
		"identifier":  identifier,
	}
	if err := c.post(ctx, "/idp/idx/identify", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Challenge selects an authenticator to verify. For email the provider
// dispatches a passcode out-of-band.
func (c *Client) Challenge(ctx context.Context, stateHandle string, kind Authenticator) (*ChallengeResponse, error) {
	var out ChallengeResponse
	body := map[string]any{
		"stateHandle":   stateHandle,
		"authenticator": map[string]string{"methodType": string(kind)},
	}
	if err := c.post(ctx, "/idp/idx/challenge", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChallengeAnswer submits the answer to the pending challenge. The answer is
// a password for password challenges and a passcode for email challenges.
func (c *Client) ChallengeAnswer(ctx context.Context, stateHandle, answer string) (*AnswerResponse, error) {
	var out AnswerResponse
	body := map[string]any{
		"stateHandle": stateHandle,
		"credentials": map[string]string{"passcode": answer},
	}
	if err := c.post(ctx, "/idp/idx/challenge/answer", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Enroll begins enrollment of a new account with the given profile.
func (c *Client) Enroll(ctx context.Context, stateHandle string, profile EnrollProfile) (*EnrollResponse, error) {
	var out EnrollResponse
	body := map[string]any{
		"stateHandle": stateHandle,
		"userProfile": profile,
	}
	if err := c.post(ctx, "/idp/idx/enroll", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recover switches the interaction into credential recovery.
func (c *Client) Recover(ctx context.Context, stateHandle string) (*RecoverResponse, error) {
	var out RecoverResponse
	body := map[string]string{"stateHandle": stateHandle}
	if err := c.post(ctx, "/idp/idx/recover", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshSession extends a provider session and returns the refreshed token.
func (c *Client) RefreshSession(ctx context.Context, sessionToken string) (*SessionResponse, error) {
	var out SessionResponse
	body := map[string]string{"token": sessionToken}
	if err := c.post(ctx, "/api/v1/sessions/refresh", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CloseSession revokes a provider session. A session the provider no longer
// knows about is not an error.
func (c *Client) CloseSession(ctx context.Context, sessionToken string) error {
	body := map[string]string{"token": sessionToken}
	err := c.post(ctx, "/api/v1/sessions/close", body, nil)
	if err != nil && !errors.Is(err, ErrInvalidHandle) {
		return err
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := c.doWithRetry(ctx, path, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Code != "" {
			return errorForCode(apiErr.Code)
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

// doWithRetry performs the request with a single transparent retry on
// transport failure or a 5xx response. Errors the provider classifies (4xx
// with an error code) are never retried.
func (c *Client) doWithRetry(ctx context.Context, path string, payload []byte) (*http.Response, error) {
	correlationID := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
			}
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "SSWS "+c.apiToken)
		req.Header.Set("X-Correlation-Id", correlationID)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("%w: %v", ErrUnavailable, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			continue
		}
		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
			continue
		}
		return resp, nil
	}
	return nil, lastErr
}
