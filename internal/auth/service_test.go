package auth_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatekeeper/gatekeeper/internal/auth"
)

func newTestService() *auth.Service {
	return auth.NewService(auth.ServiceConfig{
		JWTService: auth.NewJWTService(auth.JWTConfig{
			SigningKey: "test-secret-key-for-testing-only",
			Issuer:     "https://api.gatekeeper.local",
			Audience:   "gatekeeper-api",
		}),
		AdminUsername: "admin",
		AdminPassword: "correct-horse",
		Logger:        zerolog.Nop(),
	})
}

func TestService_Login(t *testing.T) {
	svc := newTestService()

	resp, err := svc.Login(&auth.LoginRequest{Username: "admin", Password: "correct-horse"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Greater(t, resp.ExpiresIn, int64(0))

	subject, err := svc.ValidateAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin", subject)
}

func TestService_LoginRejected(t *testing.T) {
	svc := newTestService()

	tests := []struct {
		name string
		req  auth.LoginRequest
	}{
		{"wrong password", auth.LoginRequest{Username: "admin", Password: "nope"}},
		{"wrong username", auth.LoginRequest{Username: "root", Password: "correct-horse"}},
		{"missing username", auth.LoginRequest{Password: "correct-horse"}},
		{"missing password", auth.LoginRequest{Username: "admin"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Login(&tt.req)
			assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
		})
	}
}
