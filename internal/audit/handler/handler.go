// Package handler exposes the action log over HTTP.
package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"crowngate/internal/audit"
	"crowngate/internal/audit/models"
	id "crowngate/pkg/domain"
	"crowngate/pkg/platform/httputil"
	"crowngate/pkg/requestcontext"
)

// Service is the audit read surface the handler depends on.
type Service interface {
	List(ctx context.Context, opts audit.ListOptions) ([]models.Entry, error)
	ExportCSV(ctx context.Context, w io.Writer, opts audit.ListOptions) error
}

type Handler struct {
	logger  *slog.Logger
	service Service
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register mounts the log routes. The router passed in must already require
// authentication.
func (h *Handler) Register(r chi.Router) {
	r.Get("/logs", h.handleList)
	r.Get("/logs/export", h.handleExport)
}

// parseOptions reads filters from the query string. Filters only take effect
// for staff callers downstream, so lenient parsing is fine here.
func parseOptions(r *http.Request) audit.ListOptions {
	q := r.URL.Query()
	opts := audit.ListOptions{
		Action: models.Action(q.Get("action")),
	}
	if v := q.Get("user_id"); v != "" {
		if userID, err := id.ParseUserID(v); err == nil {
			opts.UserID = userID
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			opts.To = t
		}
	}
	return opts
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.service.List(ctx, parseOptions(r))
	if err != nil {
		h.logger.WarnContext(ctx, "failed to list action logs",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []models.Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filename := "action-logs-" + requestcontext.Now(ctx).Format(time.DateOnly) + ".csv"
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)

	ew := &exportWriter{ResponseWriter: w}
	if err := h.service.ExportCSV(ctx, ew, parseOptions(r)); err != nil {
		h.logger.ErrorContext(ctx, "failed to export action logs",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		if !ew.wrote {
			w.Header().Del("Content-Disposition")
			httputil.WriteError(w, err)
		}
		// Mid-stream failures can only stop the download.
	}
}

// exportWriter records whether the CSV stream has started, so errors raised
// before the first byte can still produce a proper error response.
type exportWriter struct {
	http.ResponseWriter
	wrote bool
}

func (w *exportWriter) Write(p []byte) (int, error) {
	w.wrote = true
	return w.ResponseWriter.Write(p)
}
