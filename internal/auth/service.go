package auth

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Predefined service errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// Service provides authentication operations against a single admin account.
type Service struct {
	jwtService    *JWTService
	adminUsername string
	adminPassword string
	logger        zerolog.Logger
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService    *JWTService
	AdminUsername string
	AdminPassword string
	Logger        zerolog.Logger
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		jwtService:    cfg.JWTService,
		adminUsername: cfg.AdminUsername,
		adminPassword: cfg.AdminPassword,
		logger:        cfg.Logger.With().Str("component", "auth").Logger(),
	}
}

// Login authenticates the admin account and returns an access token.
func (s *Service) Login(req *LoginRequest) (*TokenResponse, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, errs[0].Message)
	}

	userOK := subtle.ConstantTimeCompare([]byte(req.Username), []byte(s.adminUsername)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.adminPassword)) == 1
	if !userOK || !passOK {
		s.logger.Warn().Str("username", req.Username).Msg("login rejected")
		return nil, ErrInvalidCredentials
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(s.adminUsername)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	s.logger.Info().Str("username", req.Username).Msg("admin logged in")

	return &TokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
	}, nil
}

// ValidateAccessToken validates an access token and returns the subject.
func (s *Service) ValidateAccessToken(tokenString string) (string, error) {
	claims, err := s.jwtService.ValidateAccessToken(tokenString)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
