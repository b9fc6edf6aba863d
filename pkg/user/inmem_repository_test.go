package user

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryUserRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryUserRepository()

	created, err := repo.Create(ctx, User{
		Username: "alice",
		Email:    "Alice@Example.com",
		Status:   StatusActive,
		Roles:    []Role{{Name: "USER", Permissions: []string{"profile:read"}}},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	t.Run("FindByUsername", func(t *testing.T) {
		u, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, created.ID, u.ID)
		assert.Equal(t, []string{"USER"}, u.RoleNames())
	})

	t.Run("FindByEmailIgnoresCase", func(t *testing.T) {
		u, err := repo.FindByEmail(ctx, "alice@example.com")
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
	})

	t.Run("FindByID", func(t *testing.T) {
		u, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "alice", u.Username)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := repo.FindByUsername(ctx, "bob")
		assert.ErrorIs(t, err, ErrUserNotFound)
		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, ErrUserNotFound)
		_, err = repo.FindByActivationToken(ctx, "")
		assert.ErrorIs(t, err, ErrUserNotFound)
	})

	t.Run("Duplicates", func(t *testing.T) {
		_, err := repo.Create(ctx, User{Username: "alice", Email: "other@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateUsername)
		_, err = repo.Create(ctx, User{Username: "alice2", Email: "ALICE@example.com"})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("ReturnedUsersAreCopies", func(t *testing.T) {
		u, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		u.Roles[0].Name = "ADMIN"

		again, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, "USER", again.Roles[0].Name)
	})

	t.Run("UpdateReindexes", func(t *testing.T) {
		u, err := repo.FindByUsername(ctx, "alice")
		require.NoError(t, err)
		u.Username = "alice.w"
		u.ActivationToken = "tok"

		updated, err := repo.Update(ctx, u)
		require.NoError(t, err)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)

		_, err = repo.FindByUsername(ctx, "alice")
		assert.ErrorIs(t, err, ErrUserNotFound)
		byToken, err := repo.FindByActivationToken(ctx, "tok")
		require.NoError(t, err)
		assert.Equal(t, "alice.w", byToken.Username)
	})

	t.Run("UpdateUnknown", func(t *testing.T) {
		_, err := repo.Update(ctx, User{ID: uuid.New(), Username: "ghost"})
		assert.ErrorIs(t, err, ErrUserNotFound)
	})
}
