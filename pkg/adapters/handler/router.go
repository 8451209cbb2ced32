package handler

import (
	"encoding/json"
	"net/http"

	"github.com/openlistings/leadsync/pkg/config"
	"github.com/openlistings/leadsync/pkg/ports"
)

// Deps bundles everything the router wires together.
type Deps struct {
	Repo      ports.PageRepository
	Pages     ports.PageService
	Leads     ports.LeadService
	Analytics ports.AnalyticsService
	Sync      ports.SyncService
	Delivery  ports.DeliveryService
}

// NewRouter creates and configures the main application router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	h := NewHTTPHandler(deps.Pages, deps.Leads, deps.Analytics)
	sh := NewSyncHandler(deps.Sync)
	ah := NewAdminHandler(deps.Repo, deps.Sync, deps.Delivery)

	mw := NewMiddleware(cfg)
	authHandler := NewAuthHandler(cfg)

	mux := http.NewServeMux()

	// Public Routes
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		res := map[string]string{
			"message": "ok",
		}
		_ = json.NewEncoder(w).Encode(&res)
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /p/{slug}", h.GetBySlug)
	mux.HandleFunc("POST /p/{slug}/events", h.Track)
	mux.HandleFunc("POST /api/v1/pages/{id}/submissions", h.SubmitLead)
	mux.HandleFunc("GET /auth/google/login", authHandler.Login)
	mux.HandleFunc("GET /auth/google/callback", authHandler.Callback)
	mux.HandleFunc("GET /auth/logout", authHandler.Logout)

	// Sideloaded media
	mux.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))

	// Sync Routes (shared-secret auth, partner-to-hub traffic)
	syncMux := http.NewServeMux()
	syncMux.HandleFunc("POST /api/v1/sync/receive", sh.Receive)
	syncMux.HandleFunc("POST /api/v1/sync/delete", sh.ReceiveDelete)
	syncMux.HandleFunc("POST /api/v1/sync/register", sh.ReceiveRegister)
	mux.Handle("/api/v1/sync/", mw.APIKeyMiddleware(syncMux))

	// Protected Routes (admin API)
	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("POST /api/v1/pages", h.Create)
	protectedMux.HandleFunc("GET /api/v1/pages", h.List)
	protectedMux.HandleFunc("GET /api/v1/pages/{id}/stats", h.Stats)
	protectedMux.HandleFunc("PUT /api/v1/pages/{id}", h.Update)
	protectedMux.HandleFunc("POST /api/v1/pages/{id}/publish", h.Publish)
	protectedMux.HandleFunc("POST /api/v1/pages/{id}/push", ah.Push)
	protectedMux.HandleFunc("DELETE /api/v1/pages/{id}", h.Delete)

	protectedMux.HandleFunc("GET /api/v1/activity", ah.Activity)
	protectedMux.HandleFunc("GET /api/v1/delivery/queue", ah.DeliveryQueue)
	protectedMux.HandleFunc("POST /api/v1/delivery/sweep", ah.Sweep)
	protectedMux.HandleFunc("DELETE /api/v1/delivery/queue", ah.ClearQueue)
	protectedMux.HandleFunc("POST /api/v1/register", ah.Register)
	protectedMux.HandleFunc("GET /api/v1/partners", ah.Partners)

	// Apply Middleware to Protected Routes.
	// /api/v1/pages/{id}/submissions stays public (lead capture) and
	// /api/v1/sync/ carries its own key auth, so both are registered
	// on the outer mux before this catch-all.
	mux.Handle("/api/v1/", mw.AuthMiddleware(protectedMux))

	return mux
}
