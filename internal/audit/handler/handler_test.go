package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowngate/internal/audit"
	"crowngate/internal/audit/models"
	"crowngate/internal/audit/store"
	id "crowngate/pkg/domain"
	"crowngate/pkg/testutil"
)

type stubStaff struct {
	staff map[id.UserID]bool
}

func (s *stubStaff) IsStaff(_ context.Context, userID id.UserID) (bool, error) {
	return s.staff[userID], nil
}

type stubDirectory struct{}

func (stubDirectory) KingdomUserIDs(_ context.Context, kingUserID id.UserID) ([]id.UserID, error) {
	return []id.UserID{kingUserID}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *store.InMemory, id.UserID, id.UserID) {
	t.Helper()

	st := store.NewInMemory()
	staffID := id.UserID(uuid.New())
	citizenID := id.UserID(uuid.New())
	service := audit.NewService(st, &stubStaff{staff: map[id.UserID]bool{staffID: true}}, stubDirectory{})

	r := chi.NewRouter()
	New(service, slog.New(slog.DiscardHandler)).Register(r)
	return r, st, staffID, citizenID
}

func appendEntry(t *testing.T, st *store.InMemory, userID id.UserID) {
	t.Helper()
	require.NoError(t, st.Append(context.Background(), models.Entry{
		ID:        id.EntryID(uuid.New()),
		UserID:    userID,
		Action:    models.ActionLogin,
		CreatedAt: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC),
	}))
}

func Test_HandleExport_StaffDownloadsCSV(t *testing.T) {
	router, st, staffID, citizenID := newTestRouter(t)
	appendEntry(t, st, citizenID)

	req := testutil.WithUser(testutil.NewRequest(t, http.MethodGet, "/logs/export"), staffID, id.RoleCitizen)
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/csv", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Header().Get("Content-Disposition"), ".csv")
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], citizenID.String())
}

func Test_HandleExport_NonStaffForbidden(t *testing.T) {
	router, st, _, citizenID := newTestRouter(t)
	appendEntry(t, st, citizenID)

	req := testutil.WithUser(testutil.NewRequest(t, http.MethodGet, "/logs/export"), citizenID, id.RoleCitizen)
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, rr.Header().Get("Content-Disposition"))
	body := testutil.DecodeBody[map[string]any](t, rr)
	assert.Equal(t, "forbidden", body["error"])
}

func Test_HandleList_CitizenScopedToSelf(t *testing.T) {
	router, st, _, citizenID := newTestRouter(t)
	appendEntry(t, st, citizenID)
	appendEntry(t, st, id.UserID(uuid.New()))

	req := testutil.WithUser(testutil.NewRequest(t, http.MethodGet, "/logs"), citizenID, id.RoleCitizen)
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)
	body := testutil.DecodeBody[map[string][]models.Entry](t, rr)
	require.Len(t, body["logs"], 1)
	assert.Equal(t, citizenID, body["logs"][0].UserID)
}
