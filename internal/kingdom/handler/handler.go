// Package handler exposes kingdom listing, creation, dashboards and
// enrollment over HTTP.
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"crowngate/internal/kingdom/models"
	"crowngate/internal/kingdom/service"
	id "crowngate/pkg/domain"
	"crowngate/pkg/platform/httputil"
	"crowngate/pkg/requestcontext"
)

type Handler struct {
	logger  *slog.Logger
	kingdom *service.Service
}

func New(kingdom *service.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, kingdom: kingdom}
}

// RegisterPublic mounts the unauthenticated kingdom routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/kingdoms", h.handleListKingdoms)
}

// RegisterProtected mounts the routes that require a valid token.
func (h *Handler) RegisterProtected(r chi.Router) {
	r.Post("/kingdoms", h.handleCreateKingdom)
	r.Get("/kingdom/dashboard", h.handleDashboard)
	r.Post("/citizens/{citizenID}/enroll", h.handleEnroll)
}

type createKingdomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *Handler) handleListKingdoms(w http.ResponseWriter, r *http.Request) {
	kingdoms, err := h.kingdom.ListKingdoms(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if kingdoms == nil {
		kingdoms = []*models.Kingdom{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"kingdoms": kingdoms})
}

func (h *Handler) handleCreateKingdom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.Decode[createKingdomRequest](w, r)
	if !ok {
		return
	}

	kingdom, err := h.kingdom.CreateKingdom(ctx, req.Name, req.Description)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to create kingdom",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, kingdom)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.kingdom.Dashboard(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	citizenID, err := id.ParseCitizenID(chi.URLParam(r, "citizenID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	citizen, err := h.kingdom.Enroll(ctx, citizenID)
	if err != nil {
		h.logger.WarnContext(ctx, "enrollment rejected",
			"request_id", requestcontext.RequestID(ctx),
			"citizen_id", citizenID.String(),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, citizen)
}
