package api

import (
	"context"
	"fmt"
	nethttp "net/http"

	"github.com/document-locker/locker/internal/models"
)

// Login posts credentials. A 2xx response may still lack a token, in which
// case the returned response carries the server's message.
func (c *Client) Login(ctx context.Context, in models.LoginRequest) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.doJSON(ctx, nethttp.MethodPost, "/login", in, &out); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return &out, nil
}

// Register creates an account and returns the server's message.
func (c *Client) Register(ctx context.Context, in models.RegisterRequest) (string, error) {
	var out models.MessageResponse
	if err := c.doJSON(ctx, nethttp.MethodPost, "/register", in, &out); err != nil {
		return "", fmt.Errorf("register: %w", err)
	}
	return out.Text(), nil
}

// Me returns the profile behind the current token.
func (c *Client) Me(ctx context.Context) (*models.UserProfile, error) {
	if c.Token() == "" {
		return nil, ErrNotLoggedIn
	}
	var out models.UserProfile
	if err := c.doJSON(ctx, nethttp.MethodGet, "/me", nil, &out); err != nil {
		return nil, fmt.Errorf("me: %w", err)
	}
	return &out, nil
}
