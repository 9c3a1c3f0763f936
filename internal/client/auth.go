package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	v1 "github.com/fyrsmithlabs/taskdeck/pkg/api/v1"
)

// Login exchanges credentials for a session token. It needs no token.
func (c *Client) Login(ctx context.Context, email, password string) (v1.AuthResponse, error) {
	return c.authenticate(ctx, request{
		op:       OpLogin,
		method:   http.MethodPost,
		path:     "/auth/login",
		body:     v1.LoginRequest{Email: strings.TrimSpace(email), Password: password},
		fallback: msgLoginFailed,
		public:   true,
	})
}

// Register creates an account and returns its first session token.
func (c *Client) Register(ctx context.Context, name, email, password string) (v1.AuthResponse, error) {
	return c.authenticate(ctx, request{
		op:     OpRegister,
		method: http.MethodPost,
		path:   "/auth/register",
		body: v1.RegisterRequest{
			Name:     strings.TrimSpace(name),
			Email:    strings.TrimSpace(email),
			Password: password,
		},
		fallback: msgRegisterFailed,
		public:   true,
	})
}

func (c *Client) authenticate(ctx context.Context, r request) (v1.AuthResponse, error) {
	resp, err := c.send(ctx, r)
	if err != nil {
		var st *errStatus
		if errors.As(err, &st) {
			return v1.AuthResponse{}, &v1.AuthenticationError{Message: st.message}
		}
		return v1.AuthResponse{}, err
	}

	var out v1.AuthResponse
	if err := json.Unmarshal(resp.body, &out); err != nil || out.Token == "" {
		c.logger.Warn(ctx, "unusable auth response", zap.String("op", r.op), zap.Error(err))
		return v1.AuthResponse{}, &v1.AuthenticationError{Message: r.fallback}
	}
	return out, nil
}
