//go:build integration

package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	identitymodels "crowngate/internal/identity/models"
	identitystore "crowngate/internal/identity/store"
	"crowngate/internal/kingdom/models"
	id "crowngate/pkg/domain"
	dErrors "crowngate/pkg/domain-errors"
	"crowngate/pkg/platform/sentinel"
	"crowngate/pkg/testutil/containers"
)

type fixture struct {
	kingdoms *PostgresKingdoms
	kings    *PostgresKings
	citizens *PostgresCitizens
	users    *identitystore.Postgres
}

func setup(t *testing.T) (*fixture, context.Context) {
	t.Helper()
	pg := containers.GetPostgres(t)
	ctx := context.Background()
	require.NoError(t, pg.TruncateTables(ctx, "users", "kingdoms", "kings", "citizens"))
	return &fixture{
		kingdoms: NewPostgresKingdoms(pg.DB),
		kings:    NewPostgresKings(pg.DB),
		citizens: NewPostgresCitizens(pg.DB),
		users:    identitystore.NewPostgres(pg.DB),
	}, ctx
}

func (f *fixture) newUser(t *testing.T, ctx context.Context, role id.Role) id.UserID {
	t.Helper()
	user, err := identitymodels.NewUser(id.UserID(uuid.New()), uuid.NewString()+"@example.com", "x-hash", "Ina", "Gate", role, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.users.Create(ctx, user))
	return user.ID
}

func (f *fixture) newKingdom(t *testing.T, ctx context.Context, name string) *models.Kingdom {
	t.Helper()
	kingdom, err := models.NewKingdom(id.KingdomID(uuid.New()), name, "", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.kingdoms.Create(ctx, kingdom))
	return kingdom
}

func (f *fixture) newCitizen(t *testing.T, ctx context.Context, kingdomID id.KingdomID) *models.Citizen {
	t.Helper()
	userID := f.newUser(t, ctx, id.RoleCitizen)
	citizen, err := models.NewCitizen(id.CitizenID(uuid.New()), userID, kingdomID, 30, "p@example.com", time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.citizens.Create(ctx, citizen))
	return citizen
}

func Test_PostgresKingdoms_UniqueName(t *testing.T) {
	f, ctx := setup(t)
	f.newKingdom(t, ctx, "Northland")

	dup, err := models.NewKingdom(id.KingdomID(uuid.New()), "Northland", "", time.Now().UTC())
	require.NoError(t, err)
	require.ErrorIs(t, f.kingdoms.Create(ctx, dup), sentinel.ErrAlreadyUsed)
}

func Test_PostgresKings_OneKingPerKingdom(t *testing.T) {
	f, ctx := setup(t)
	kingdom := f.newKingdom(t, ctx, "Northland")

	first, err := models.NewKing(id.KingID(uuid.New()), f.newUser(t, ctx, id.RoleKing), kingdom.ID, 3, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.kings.Create(ctx, first))

	second, err := models.NewKing(id.KingID(uuid.New()), f.newUser(t, ctx, id.RoleKing), kingdom.ID, 3, time.Now().UTC())
	require.NoError(t, err)
	require.ErrorIs(t, f.kings.Create(ctx, second), sentinel.ErrAlreadyUsed)

	got, err := f.kings.FindByKingdomID(ctx, kingdom.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func Test_PostgresCitizens_EnrollmentRoundTrip(t *testing.T) {
	f, ctx := setup(t)
	kingdom := f.newKingdom(t, ctx, "Northland")
	king, err := models.NewKing(id.KingID(uuid.New()), f.newUser(t, ctx, id.RoleKing), kingdom.ID, 3, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.kings.Create(ctx, king))

	citizen := f.newCitizen(t, ctx, kingdom.ID)
	require.NoError(t, citizen.Enroll(king.ID, time.Now().UTC()))
	require.NoError(t, f.citizens.Update(ctx, citizen))

	got, err := f.citizens.FindByID(ctx, citizen.ID)
	require.NoError(t, err)
	assert.True(t, got.IsEnrolled)
	require.NotNil(t, got.KingID)
	assert.Equal(t, king.ID, *got.KingID)
	assert.NotNil(t, got.EnrolledAt)

	count, err := f.citizens.CountEnrolledByKing(ctx, king.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// Test_PostgresKings_ExecuteSerializesEnrollment runs the enrollment mutation
// concurrently against one king row. The FOR UPDATE lock must keep the
// enrolled count at capacity no matter the interleaving.
func Test_PostgresKings_ExecuteSerializesEnrollment(t *testing.T) {
	f, ctx := setup(t)
	kingdom := f.newKingdom(t, ctx, "Northland")
	king, err := models.NewKing(id.KingID(uuid.New()), f.newUser(t, ctx, id.RoleKing), kingdom.ID, 2, time.Now().UTC())
	require.NoError(t, err)
	require.NoError(t, f.kings.Create(ctx, king))

	const contenders = 6
	citizens := make([]*models.Citizen, contenders)
	for i := range citizens {
		citizens[i] = f.newCitizen(t, ctx, kingdom.ID)
	}

	var wg sync.WaitGroup
	errs := make(chan error, contenders)
	for _, c := range citizens {
		wg.Add(1)
		go func(citizenID id.CitizenID) {
			defer wg.Done()
			errs <- f.kings.Execute(ctx, king.ID, func(ctx context.Context, locked *models.King) error {
				citizen, err := f.citizens.FindByID(ctx, citizenID)
				if err != nil {
					return err
				}
				count, err := f.citizens.CountEnrolledByKing(ctx, locked.ID)
				if err != nil {
					return err
				}
				if !locked.CanAcceptMore(count) {
					return dErrors.New(dErrors.CodeConflict, "kingdom is at capacity")
				}
				if err := citizen.Enroll(locked.ID, time.Now().UTC()); err != nil {
					return err
				}
				return f.citizens.Update(ctx, citizen)
			})
		}(c.ID)
	}
	wg.Wait()
	close(errs)

	succeeded, rejected := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 2, succeeded)
	assert.Equal(t, contenders-2, rejected)

	count, err := f.citizens.CountEnrolledByKing(ctx, king.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
