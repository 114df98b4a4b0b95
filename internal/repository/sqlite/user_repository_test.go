package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-api/internal/domain"
	"auth-api/internal/repository"
)

func newTestRepo(t *testing.T) repository.UserRepository {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "auth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := NewUserRepository(db)
	require.NoError(t, repo.Init(context.Background()))
	return repo
}

func newUser(login string) *domain.User {
	return &domain.User{
		ID:           uuid.NewString(),
		Login:        login,
		PasswordHash: "$2a$04$hash-for-" + login,
		Role:         domain.RoleUser,
	}
}

func TestUserRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	u := newUser("alice")
	u.Role = domain.RoleAdmin
	require.NoError(t, repo.Create(ctx, u))
	assert.False(t, u.CreatedAt.IsZero())

	got, err := repo.GetByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "alice", got.Login)
	assert.Equal(t, u.PasswordHash, got.PasswordHash)
	assert.Equal(t, domain.RoleAdmin, got.Role)
}

func TestUserRepository_GetByLogin(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newUser("alice")))

	t.Run("missing login", func(t *testing.T) {
		_, err := repo.GetByLogin(ctx, "bob")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})

	t.Run("case sensitive", func(t *testing.T) {
		_, err := repo.GetByLogin(ctx, "Alice")
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

func TestUserRepository_CreateDuplicate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first := newUser("alice")
	require.NoError(t, repo.Create(ctx, first))

	second := newUser("alice")
	second.PasswordHash = "other"
	err := repo.Create(ctx, second)
	require.ErrorIs(t, err, repository.ErrAlreadyExists)

	got, err := repo.GetByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.PasswordHash, got.PasswordHash)

	// a different case is a different login
	require.NoError(t, repo.Create(ctx, newUser("ALICE")))
}

func TestUserRepository_ConcurrentCreate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	const writers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u := newUser("racer")
			u.PasswordHash = fmt.Sprintf("hash-%d", i)
			err := repo.Create(ctx, u)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case assert.ErrorIs(t, err, repository.ErrAlreadyExists):
				conflicts++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, writers-1, conflicts)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
