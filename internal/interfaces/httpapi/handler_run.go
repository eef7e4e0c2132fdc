package httpapi

import (
	"net/http"
)

// TriggerRun dispatches a check run and returns immediately. A run
// already in flight maps to 409 rather than queueing a second one.
func (h *Handler) TriggerRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.TriggerRun")
	defer span.End()

	if err := h.scheduler.Trigger(ctx); err != nil {
		h.logger.WarnContext(ctx, "trigger run rejected", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusAccepted, map[string]string{"status": "started"})
}

// AbortRun asks the in-flight run to stop at its next phase boundary.
func (h *Handler) AbortRun(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.AbortRun")
	defer span.End()

	aborted := h.scheduler.Abort()
	if aborted {
		h.logger.InfoContext(ctx, "run abort requested")
	}
	writeSuccess(ctx, w, http.StatusOK, map[string]bool{"aborted": aborted})
}
