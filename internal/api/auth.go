package api

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/nhle/agri-advisor/internal/model"
)

// Login exchanges credentials for an access token. The backend follows the
// OAuth2 password flow, so the email travels in the "username" field of a
// form-encoded body.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var tok TokenResponse
	if err := c.postForm(ctx, "/auth/login", form.Encode(), &tok); err != nil {
		return nil, fmt.Errorf("logging in: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("logging in: response carried no access token")
	}

	return &tok, nil
}

// Register creates an account. The response body is not used.
func (c *Client) Register(ctx context.Context, req RegisterRequest) error {
	if err := c.postJSON(ctx, "", "/auth/register", req, nil); err != nil {
		return fmt.Errorf("registering: %w", err)
	}
	return nil
}

// Me fetches the profile of the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*model.User, error) {
	var p userPayload
	if err := c.getJSON(ctx, token, "/v1/auth/me", &p); err != nil {
		return nil, fmt.Errorf("fetching current user: %w", err)
	}
	if p.Email == "" {
		return nil, errors.New("fetching current user: empty profile")
	}

	return p.toModel(), nil
}
