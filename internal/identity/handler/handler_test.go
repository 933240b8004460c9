package handler

import (
	"context"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auditmodels "crowngate/internal/audit/models"
	"crowngate/internal/identity/revocation"
	"crowngate/internal/identity/service"
	"crowngate/internal/identity/store"
	"crowngate/internal/jwtauth"
	id "crowngate/pkg/domain"
	"crowngate/pkg/testutil"
)

type stubProfiles struct{}

func (stubProfiles) CreateKingProfile(context.Context, id.UserID, id.KingdomID, int) error {
	return nil
}

func (stubProfiles) CreateCitizenProfile(context.Context, id.UserID, id.KingdomID, int, string) error {
	return nil
}

type noopAudit struct{}

func (noopAudit) Record(context.Context, id.UserID, auditmodels.Action, string, map[string]any) {}

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	tokens := jwtauth.NewService("test-signing-key", "crowngate-test", time.Hour)
	svc := service.New(store.NewInMemory(), revocation.NewInMemory(), tokens, stubProfiles{}, noopAudit{}, logger, nil)

	h := New(svc, 3600, logger)
	r := chi.NewRouter()
	h.RegisterPublic(r)
	h.RegisterProtected(r)
	return r
}

func registerBody(email string) map[string]any {
	return map[string]any{
		"email":      email,
		"password":   "longenough",
		"first_name": "Rhea",
		"last_name":  "Vale",
		"role":       "citizen",
		"kingdom_id": uuid.NewString(),
		"age":        28,
	}
}

func Test_HandleRegister(t *testing.T) {
	router := newTestRouter(t)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", registerBody("rhea@example.com"))
	rr := testutil.DoRequest(router, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	body := testutil.DecodeBody[map[string]any](t, rr)
	assert.NotEmpty(t, body["access_token"])
	assert.Equal(t, "Bearer", body["token_type"])
	assert.EqualValues(t, 3600, body["expires_in"])

	user, ok := body["user"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "rhea@example.com", user["email"])
	// The password hash must never appear in responses.
	assert.NotContains(t, rr.Body.String(), "password")
}

func Test_HandleRegister_InvalidRole(t *testing.T) {
	router := newTestRouter(t)

	body := registerBody("rhea@example.com")
	body["role"] = "emperor"
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", body))

	require.Equal(t, http.StatusBadRequest, rr.Code)
	resp := testutil.DecodeBody[map[string]string](t, rr)
	assert.Equal(t, "invalid_input", resp["error"])
}

func Test_HandleLogin_WrongPassword(t *testing.T) {
	router := newTestRouter(t)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", registerBody("rhea@example.com")))
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/login", map[string]string{
		"email":    "rhea@example.com",
		"password": "wrongpassword",
	}))

	require.Equal(t, http.StatusUnauthorized, rr.Code)
	resp := testutil.DecodeBody[map[string]string](t, rr)
	assert.Equal(t, "invalid credentials", resp["error_description"])
}

func Test_HandleProfile(t *testing.T) {
	router := newTestRouter(t)
	rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/auth/register", registerBody("rhea@example.com")))
	require.Equal(t, http.StatusCreated, rr.Code)
	created := testutil.DecodeBody[map[string]any](t, rr)
	userID, err := id.ParseUserID(created["user"].(map[string]any)["id"].(string))
	require.NoError(t, err)

	req := testutil.WithUser(testutil.NewRequest(t, http.MethodGet, "/auth/profile"), userID, id.RoleCitizen)
	rr = testutil.DoRequest(router, req)

	require.Equal(t, http.StatusOK, rr.Code)
	profile := testutil.DecodeBody[map[string]any](t, rr)
	assert.Equal(t, "rhea@example.com", profile["email"])
}

func Test_HandleProfile_Unauthenticated(t *testing.T) {
	router := newTestRouter(t)

	rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/auth/profile"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}
