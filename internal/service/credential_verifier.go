package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"auth-api/internal/audit"
	"auth-api/internal/domain"
	"auth-api/internal/repository"
	"auth-api/internal/security"
)

// CredentialVerifier checks a login/password pair against stored users.
type CredentialVerifier interface {
	Verify(ctx context.Context, creds domain.Credentials) (domain.Principal, error)
}

type credentialVerifier struct {
	users     repository.UserRepository
	passwords security.PasswordService
	audit     audit.Sink

	mu        sync.Mutex
	dummyHash string
}

func NewCredentialVerifier(users repository.UserRepository, passwords security.PasswordService, sink audit.Sink) CredentialVerifier {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &credentialVerifier{
		users:     users,
		passwords: passwords,
		audit:     sink,
	}
}

func (v *credentialVerifier) Verify(ctx context.Context, creds domain.Credentials) (domain.Principal, error) {
	login := creds.Login
	v.audit.Record(ctx, domain.NewAuditEvent(domain.EventLoginAttempt, login))

	if !wellFormedLogin(login) || creds.Password == "" {
		return v.fail(ctx, login)
	}

	user, err := v.users.GetByLogin(ctx, login)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		// unknown logins pay for one comparison too
		dummy, err := v.dummy(ctx)
		if err != nil {
			return domain.Principal{}, fmt.Errorf("prepare dummy hash: %w", err)
		}
		if _, err := v.passwords.Verify(ctx, creds.Password, dummy); err != nil {
			return domain.Principal{}, fmt.Errorf("verify password: %w", err)
		}
		return v.fail(ctx, login)
	case err != nil:
		return domain.Principal{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := v.passwords.Verify(ctx, creds.Password, user.PasswordHash)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return v.fail(ctx, login)
	}

	v.audit.Record(ctx, domain.NewAuditEvent(domain.EventLoginSuccess, login))
	return user.Principal(), nil
}

func (v *credentialVerifier) fail(ctx context.Context, login string) (domain.Principal, error) {
	v.audit.Record(ctx, domain.NewAuditEvent(domain.EventLoginFailure, login))
	return domain.Principal{}, ErrAuthenticationFailed
}

// dummy returns a hash of a random secret made with the configured cost.
func (v *credentialVerifier) dummy(ctx context.Context) (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.dummyHash != "" {
		return v.dummyHash, nil
	}
	hash, err := v.passwords.Hash(ctx, uuid.NewString())
	if err != nil {
		return "", err
	}
	v.dummyHash = hash
	return hash, nil
}
