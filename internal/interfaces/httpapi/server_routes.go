package httpapi

import (
	"net/http"

	"golang.org/x/time/rate"
)

func registerSystemRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /ping", handler.Ping)
	mux.HandleFunc("GET /healthz", handler.Healthz)
}

func registerDashboardRoutes(mux *http.ServeMux, handler *Handler) {
	mux.HandleFunc("GET /api/dashboard-data", handler.GetDashboardData)
	mux.HandleFunc("GET /api/run-status", handler.GetRunStatus)
	mux.HandleFunc("GET /api/activity", handler.ListActivity)
}

func registerControlRoutes(mux *http.ServeMux, handler *Handler, adminToken string, triggerLimiter *rate.Limiter) {
	mux.Handle("POST /api/run-check",
		RequireAdminToken(adminToken, RateLimit(triggerLimiter, http.HandlerFunc(handler.TriggerRun))))
	mux.Handle("POST /api/run-abort",
		RequireAdminToken(adminToken, http.HandlerFunc(handler.AbortRun)))
}
