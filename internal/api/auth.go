package api

import (
	"context"
	"net/http"

	"testai/internal/session"
)

// AuthService covers /auth.
type AuthService struct {
	c *Client
}

func (s *AuthService) Register(ctx context.Context, in Registration) (*AuthResponse, error) {
	var out AuthResponse
	if err := s.c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/register", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *AuthService) Login(ctx context.Context, in Credentials) (*AuthResponse, error) {
	var out AuthResponse
	if err := s.c.Do(ctx, Request{Method: http.MethodPost, Path: "/auth/login", Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the profile the service associates with the current token.
func (s *AuthService) Me(ctx context.Context) (*session.User, error) {
	var out session.User
	if err := s.c.Do(ctx, Request{Method: http.MethodGet, Path: "/auth/me"}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
