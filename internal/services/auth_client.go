package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/paytrack/internal/apperr"
	"github.com/example/paytrack/internal/utils"
)

// Principal is the authenticated caller.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// TokenValidator resolves a bearer token to a principal. Every failure is
// an Unauthorized error.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Principal, error)
}

type authMeResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Data    *Principal `json:"data"`
}

// AuthClient validates tokens against the auth service's /auth/me endpoint.
// It never retries.
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewAuthClient constructs AuthClient.
func NewAuthClient(baseURL string, timeout time.Duration, log logrus.FieldLogger) *AuthClient {
	return &AuthClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		log:        log.WithField("component", "auth_client"),
	}
}

func (c *AuthClient) Validate(ctx context.Context, token string) (*Principal, error) {
	principal, err := c.fetchPrincipal(ctx, token)
	if err != nil {
		c.log.WithError(err).Warn("token validation failed")
		return nil, apperr.Wrap(apperr.Unauthorized, "Authentication failed", err)
	}
	c.log.WithField("user_id", principal.ID).Debug("token validated")
	return principal, nil
}

func (c *AuthClient) fetchPrincipal(ctx context.Context, token string) (*Principal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/me", nil)
	if err != nil {
		return nil, fmt.Errorf("auth request build: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("auth service returned status %d", resp.StatusCode)
	}

	var result authMeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("auth response unmarshal: %w", err)
	}
	if !result.Success || result.Data == nil || result.Data.ID == "" {
		return nil, fmt.Errorf("auth service rejected token: %s", result.Message)
	}

	return result.Data, nil
}

// JWTValidator verifies HS256 tokens locally instead of calling the auth
// service.
type JWTValidator struct {
	secret string
}

// NewJWTValidator constructs JWTValidator.
func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: secret}
}

func (v *JWTValidator) Validate(_ context.Context, token string) (*Principal, error) {
	claims, err := utils.ParseToken(v.secret, token)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthorized, "Invalid or expired token", err)
	}
	return &Principal{ID: claims.UserID, Email: claims.Email, Phone: claims.Phone}, nil
}
