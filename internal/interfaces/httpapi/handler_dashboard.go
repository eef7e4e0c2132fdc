package httpapi

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/teamwarden/teamwarden/internal/usecase"
)

func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Ping")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"message": "pong"})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeSuccess(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) GetDashboardData(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetDashboardData")
	defer span.End()

	data, err := h.dashboard.Data(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "load dashboard data failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	dto := dashboardDTO{
		Members:  make([]memberDTO, 0, len(data.Members)),
		Stats:    teamStatsDTO(data.Stats),
		Activity: make([]activityDTO, 0, len(data.Activity)),
		Run:      toRunStatusDTO(data.Run),
	}
	for _, m := range data.Members {
		dto.Members = append(dto.Members, toMemberDTO(m))
	}
	for _, e := range data.Activity {
		dto.Activity = append(dto.Activity, toActivityDTO(e))
	}

	writeSuccess(ctx, w, http.StatusOK, dto)
}

func (h *Handler) GetRunStatus(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetRunStatus")
	defer span.End()

	status, err := h.dashboard.RunStatus(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "load run status failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, toRunStatusDTO(status))
}

type listActivityQuery struct {
	Limit int `validate:"omitempty,min=1,max=500"`
}

func (h *Handler) ListActivity(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListActivity")
	defer span.End()

	query := listActivityQuery{}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			writeError(ctx, w, fmt.Errorf("%w: limit must be an integer", usecase.ErrInvalidInput))
			return
		}
		query.Limit = limit
	}
	if err := h.validate.StructCtx(ctx, query); err != nil {
		writeError(ctx, w, fmt.Errorf("%w: limit must be between 1 and 500", usecase.ErrInvalidInput))
		return
	}

	entries, err := h.dashboard.RecentActivity(ctx, query.Limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "list activity failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	out := make([]activityDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, toActivityDTO(e))
	}
	writeSuccess(ctx, w, http.StatusOK, out)
}
