package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// tokenRefreshLeeway is how close to expiry a cached token is still used.
const tokenRefreshLeeway = time.Minute

type tokenResponse struct {
	Token string `json:"token"`
}

// authToken returns the cached bearer token, issuing a fresh one when none
// is cached or the cached one is within a minute of expiring.
func (c *Client) authToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && (c.tokenExp.IsZero() || time.Until(c.tokenExp) > tokenRefreshLeeway) {
		return c.token, nil
	}

	token, err := c.issueToken(ctx)
	if err != nil {
		return "", err
	}

	c.token = token
	c.tokenExp = tokenExpiry(token)
	c.logger.Debug("backend.Client.authToken", "refreshed", true, "exp", c.tokenExp)

	return c.token, nil
}

func (c *Client) issueToken(ctx context.Context) (string, error) {
	raw, err := json.Marshal(map[string]string{"email": c.email})
	if err != nil {
		return "", fmt.Errorf("failed to marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/token", bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.Token == "" {
		return "", fmt.Errorf("token endpoint returned empty token")
	}

	return tr.Token, nil
}

// tokenExpiry inspects the token's exp claim without verifying the
// signature; verification is the backend's job, the client only needs to
// know when to ask for a new one. Opaque tokens get a zero expiry and are
// cached until a request fails.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}

	return exp.Time
}
