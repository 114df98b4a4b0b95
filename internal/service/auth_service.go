package service

import (
	"context"
	"fmt"

	"auth-api/internal/domain"
)

// TokenService mints and checks bearer tokens.
type TokenService interface {
	Issue(p domain.Principal) (string, error)
	Verify(token string) (domain.Principal, error)
}

// AuthService is the login entry point used by the HTTP layer.
type AuthService interface {
	Login(ctx context.Context, creds domain.Credentials) (string, error)
	Authenticate(ctx context.Context, token string) (domain.Principal, error)
}

type authService struct {
	verifier CredentialVerifier
	tokens   TokenService
}

func NewAuthService(verifier CredentialVerifier, tokens TokenService) AuthService {
	return &authService{
		verifier: verifier,
		tokens:   tokens,
	}
}

func (s *authService) Login(ctx context.Context, creds domain.Credentials) (string, error) {
	principal, err := s.verifier.Verify(ctx, creds)
	if err != nil {
		return "", err
	}
	token, err := s.tokens.Issue(principal)
	if err != nil {
		return "", fmt.Errorf("issue token: %w", err)
	}
	return token, nil
}

func (s *authService) Authenticate(_ context.Context, token string) (domain.Principal, error) {
	return s.tokens.Verify(token)
}
