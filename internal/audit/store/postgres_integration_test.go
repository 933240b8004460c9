//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowngate/internal/audit/models"
	identitymodels "crowngate/internal/identity/models"
	identitystore "crowngate/internal/identity/store"
	id "crowngate/pkg/domain"
	"crowngate/pkg/testutil/containers"
)

func createUser(t *testing.T, users *identitystore.Postgres, email string) *identitymodels.User {
	t.Helper()
	user, err := identitymodels.NewUser(id.UserID(uuid.New()), email, "x-hash", "Logan", "Ledger", id.RoleCitizen, time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, err)
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func appendEntry(t *testing.T, logs *Postgres, userID id.UserID, action models.Action) {
	t.Helper()
	require.NoError(t, logs.Append(context.Background(), models.Entry{
		ID:        id.EntryID(uuid.New()),
		UserID:    userID,
		Action:    action,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}))
}

func Test_PostgresActionLogs_RoundTrip(t *testing.T) {
	pg := containers.GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, pg.TruncateTables(ctx, "action_logs", "users"))

	users := identitystore.NewPostgres(pg.DB)
	logs := NewPostgres(pg.DB)
	user := createUser(t, users, "logged@example.com")

	appendEntry(t, logs, user.ID, models.ActionLogin)
	appendEntry(t, logs, user.ID, models.ActionTestStart)

	entries, err := logs.List(ctx, Filter{UserIDs: []id.UserID{user.ID}})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, user.ID, entries[0].UserID)
}

func Test_PostgresActionLogs_DeleteUserCascades(t *testing.T) {
	pg := containers.GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, pg.TruncateTables(ctx, "action_logs", "users"))

	users := identitystore.NewPostgres(pg.DB)
	logs := NewPostgres(pg.DB)
	leaving := createUser(t, users, "leaving@example.com")
	staying := createUser(t, users, "staying@example.com")

	appendEntry(t, logs, leaving.ID, models.ActionLogin)
	appendEntry(t, logs, leaving.ID, models.ActionLogout)
	appendEntry(t, logs, staying.ID, models.ActionLogin)

	require.NoError(t, users.Delete(ctx, leaving.ID))

	entries, err := logs.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, staying.ID, entries[0].UserID)
}
