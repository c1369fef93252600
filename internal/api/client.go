// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mobwars/server/pkg/core"
)

// ErrUnauthorized is returned when the server rejects the bearer
// credential. It is never retried: retrying cannot fix an expired or
// invalid session and would only mask it.
var ErrUnauthorized = errors.New("authentication rejected")

// Client handles communication with the mobwars game server.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	maxRetries int
	retryDelay time.Duration
}

// New creates a new API client. maxRetries and retryDelay bound the
// retry loop around game-data calls; pass 0 to use the defaults
// (3 attempts, 1 second).
func New(baseURL string, maxRetries int, retryDelay time.Duration) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// SetToken installs the bearer token attached to authenticated calls.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Identity is the user identity returned by the auth endpoints.
type Identity struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Username string `json:"username"`
}

// AuthResponse carries a token plus the authenticated identity.
type AuthResponse struct {
	Token string   `json:"token"`
	User  Identity `json:"user"`
}

type saveResponse struct {
	Message string         `json:"message"`
	Data    core.GameState `json:"data"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Healthcheck checks if the game server is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthcheck", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// Register creates a new account and stores the returned token.
func (c *Client) Register(ctx context.Context, email, password, name, username string) (AuthResponse, error) {
	body := map[string]string{
		"email": email, "password": password, "name": name, "username": username,
	}
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/register", body, &out); err != nil {
		return AuthResponse{}, err
	}
	c.token = out.Token
	return out, nil
}

// Login authenticates with email and password and stores the token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	body := map[string]string{"email": email, "password": password}
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/login", body, &out); err != nil {
		return AuthResponse{}, err
	}
	c.token = out.Token
	return out, nil
}

// GoogleLogin exchanges a Google ID token for a session token.
func (c *Client) GoogleLogin(ctx context.Context, credential string) (AuthResponse, error) {
	body := map[string]string{"credential": credential}
	var out AuthResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/google", body, &out); err != nil {
		return AuthResponse{}, err
	}
	c.token = out.Token
	return out, nil
}

// VerifyToken checks whether the stored token is still accepted.
func (c *Client) VerifyToken(ctx context.Context) (bool, error) {
	var out struct {
		Valid bool `json:"valid"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/auth/verify", nil, &out); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return false, nil
		}
		return false, err
	}
	return out.Valid, nil
}

// LoadGame fetches the authoritative game state, retrying transient
// failures up to the configured bound.
func (c *Client) LoadGame(ctx context.Context) (core.GameState, error) {
	var out core.GameState
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodGet, "/api/user/game-data", nil, &out)
	})
	return out, err
}

// SaveGame pushes a full game-state snapshot, retrying transient
// failures. The server echoes the persisted state back.
func (c *Client) SaveGame(ctx context.Context, state core.GameState) (core.GameState, error) {
	var out saveResponse
	err := c.withRetry(ctx, func() error {
		return c.doJSON(ctx, http.MethodPost, "/api/user/save-game", state, &out)
	})
	return out.Data, err
}

// withRetry runs fn up to maxRetries times with a fixed inter-attempt
// delay. Authentication rejections abort immediately.
func (c *Client) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, ErrUnauthorized) {
			return lastErr
		}
		if attempt == c.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return lastErr
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp errorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errResp); decodeErr == nil && errResp.Message != "" {
			return fmt.Errorf("%s %s returned status %d: %s", method, path, resp.StatusCode, errResp.Message)
		}
		return fmt.Errorf("%s %s returned status %d", method, path, resp.StatusCode)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
