//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowngate/internal/identity/models"
	id "crowngate/pkg/domain"
	"crowngate/pkg/platform/sentinel"
	"crowngate/pkg/testutil/containers"
)

func newUser(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := models.NewUser(id.UserID(uuid.New()), email, "x-hash", "Tess", "Stone", id.RoleCitizen, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, err)
	return user
}

func Test_PostgresUsers_RoundTrip(t *testing.T) {
	pg := containers.GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, pg.TruncateTables(ctx, "users"))

	store := NewPostgres(pg.DB)
	user := newUser(t, "roundtrip@example.com")
	require.NoError(t, store.Create(ctx, user))

	byID, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)
	assert.True(t, byID.IsActive)
	assert.Nil(t, byID.LastLogin)

	byEmail, err := store.FindByEmail(ctx, "roundtrip@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func Test_PostgresUsers_DuplicateEmail(t *testing.T) {
	pg := containers.GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, pg.TruncateTables(ctx, "users"))

	store := NewPostgres(pg.DB)
	require.NoError(t, store.Create(ctx, newUser(t, "taken@example.com")))

	err := store.Create(ctx, newUser(t, "taken@example.com"))
	require.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
}

func Test_PostgresUsers_UpdateAndDelete(t *testing.T) {
	pg := containers.GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, pg.TruncateTables(ctx, "users"))

	store := NewPostgres(pg.DB)
	user := newUser(t, "mutable@example.com")
	require.NoError(t, store.Create(ctx, user))

	user.RecordLogin(time.Now().UTC().Truncate(time.Microsecond))
	user.FirstName = "Renamed"
	require.NoError(t, store.Update(ctx, user))

	got, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.FirstName)
	require.NotNil(t, got.LastLogin)

	require.NoError(t, store.Delete(ctx, user.ID))
	_, err = store.FindByID(ctx, user.ID)
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}

func Test_PostgresUsers_NotFound(t *testing.T) {
	pg := containers.GetPostgres(t)
	ctx := context.Background()

	store := NewPostgres(pg.DB)
	_, err := store.FindByID(ctx, id.UserID(uuid.New()))
	require.ErrorIs(t, err, sentinel.ErrNotFound)
}
