package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"auth-api/internal/audit"
	"auth-api/internal/domain"
	"auth-api/internal/repository"
	"auth-api/internal/security"
)

const maxLoginLength = 255

// RegistrationService creates accounts with unique logins.
type RegistrationService interface {
	Register(ctx context.Context, login, password string, role domain.Role) (*domain.User, error)
}

type registrationService struct {
	users     repository.UserRepository
	passwords security.PasswordService
	audit     audit.Sink
}

func NewRegistrationService(users repository.UserRepository, passwords security.PasswordService, sink audit.Sink) RegistrationService {
	if sink == nil {
		sink = audit.Nop{}
	}
	return &registrationService{
		users:     users,
		passwords: passwords,
		audit:     sink,
	}
}

// Register runs check, hash, insert. role is accepted in any letter case.
// The pre-insert lookup only short-circuits the common case; the store's unique
// constraint decides races between concurrent registrations of the same login.
func (s *registrationService) Register(ctx context.Context, login, password string, role domain.Role) (*domain.User, error) {
	s.audit.Record(ctx, domain.NewAuditEvent(domain.EventRegisterAttempt, login))

	role, err := validateRegistration(login, password, role)
	if err != nil {
		return nil, err
	}

	if _, err := s.users.GetByLogin(ctx, login); err == nil {
		return nil, s.conflict(ctx, login)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	hash, err := s.passwords.Hash(ctx, password)
	if err != nil {
		if errors.Is(err, security.ErrPasswordTooLong) || errors.Is(err, security.ErrEmptyPassword) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrAlreadyExists) {
			return nil, s.conflict(ctx, login)
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Record(ctx, domain.NewAuditEvent(domain.EventRegisterSuccess, login))
	return sanitizeUser(user), nil
}

func (s *registrationService) conflict(ctx context.Context, login string) error {
	s.audit.Record(ctx, domain.NewAuditEvent(domain.EventRegisterConflict, login))
	return ErrConflict
}

// validateRegistration checks the input and returns the normalised role.
func validateRegistration(login, password string, role domain.Role) (domain.Role, error) {
	switch {
	case strings.TrimSpace(login) == "":
		return "", fmt.Errorf("%w: login is required", ErrInvalidInput)
	case !wellFormedLogin(login):
		return "", fmt.Errorf("%w: login must not start or end with whitespace", ErrInvalidInput)
	case utf8.RuneCountInString(login) > maxLoginLength:
		return "", fmt.Errorf("%w: login must be at most %d characters", ErrInvalidInput, maxLoginLength)
	case strings.TrimSpace(password) == "":
		return "", fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	parsed, err := domain.ParseRole(string(role))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return parsed, nil
}

// wellFormedLogin reports whether login is non-empty with no surrounding whitespace.
func wellFormedLogin(login string) bool {
	return login != "" && strings.TrimSpace(login) == login
}

func sanitizeUser(user *domain.User) *domain.User {
	if user == nil {
		return nil
	}
	return &domain.User{
		ID:        user.ID,
		Login:     user.Login,
		Role:      user.Role,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
