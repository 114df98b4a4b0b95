package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"auth-api/internal/domain"
	"auth-api/internal/repository"
	authsqlite "auth-api/internal/repository/sqlite"
	"auth-api/internal/security"
)

type auditRecorder struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (r *auditRecorder) Record(_ context.Context, e domain.AuditEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *auditRecorder) types() []domain.AuditEventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.AuditEventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Event
	}
	return out
}

func (r *auditRecorder) count(t domain.AuditEventType) int {
	n := 0
	for _, e := range r.types() {
		if e == t {
			n++
		}
	}
	return n
}

func newSQLiteUsers(t *testing.T) repository.UserRepository {
	t.Helper()
	db, err := authsqlite.Open(filepath.Join(t.TempDir(), "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := authsqlite.NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func newPasswords(t *testing.T) *security.HashPool {
	t.Helper()
	hasher, err := security.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)
	return security.NewHashPool(hasher, 4)
}

func newTokens(t *testing.T) *security.TokenIssuer {
	t.Helper()
	issuer, err := security.NewTokenIssuer(security.TokenConfig{
		Secret: []byte("test-secret-test-secret-test-secret"),
		TTL:    time.Hour,
	})
	require.NoError(t, err)
	return issuer
}

// stubUsers lets tests script repository outcomes.
type stubUsers struct {
	getUser   *domain.User
	getErr    error
	createErr error
	created   []*domain.User
	lookups   int
}

func (s *stubUsers) Init(context.Context) error { return nil }

func (s *stubUsers) Create(_ context.Context, u *domain.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, u)
	return nil
}

func (s *stubUsers) GetByLogin(context.Context, string) (*domain.User, error) {
	s.lookups++
	if s.getErr != nil {
		return nil, s.getErr
	}
	if s.getUser == nil {
		return nil, repository.ErrNotFound
	}
	return s.getUser, nil
}

func (s *stubUsers) Count(context.Context) (int64, error) {
	return int64(len(s.created)), nil
}

// countingPasswords records calls made through the PasswordService API.
type countingPasswords struct {
	inner    security.PasswordService
	mu       sync.Mutex
	hashes   int
	verifies int
}

func (c *countingPasswords) Hash(ctx context.Context, pw string) (string, error) {
	c.mu.Lock()
	c.hashes++
	c.mu.Unlock()
	return c.inner.Hash(ctx, pw)
}

func (c *countingPasswords) Verify(ctx context.Context, pw, hash string) (bool, error) {
	c.mu.Lock()
	c.verifies++
	c.mu.Unlock()
	return c.inner.Verify(ctx, pw, hash)
}
