package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/openlistings/leadsync/pkg/ports"
)

// AdminHandler covers the operability surface: activity log, retry
// queue inspection, manual sweeps and pushes.
type AdminHandler struct {
	repo     ports.PageRepository
	sync     ports.SyncService
	delivery ports.DeliveryService
}

func NewAdminHandler(repo ports.PageRepository, sync ports.SyncService, delivery ports.DeliveryService) *AdminHandler {
	return &AdminHandler{repo: repo, sync: sync, delivery: delivery}
}

// Activity returns the most recent log entries, newest first
func (h *AdminHandler) Activity(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.repo.RecentActivity(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"data": entries})
}

// DeliveryQueue lists queued (including exhausted) delivery attempts
func (h *AdminHandler) DeliveryQueue(w http.ResponseWriter, r *http.Request) {
	attempts, err := h.delivery.Queue(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"data": attempts})
}

// Sweep triggers a retry sweep immediately
func (h *AdminHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.delivery.RetrySweep(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(result)
}

// ClearQueue wipes the retry queue, exhausted items included
func (h *AdminHandler) ClearQueue(w http.ResponseWriter, r *http.Request) {
	if err := h.delivery.ClearQueue(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Push re-pushes a page to the hub on demand
func (h *AdminHandler) Push(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	resp, err := h.sync.Push(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

// Register announces this site to the hub
func (h *AdminHandler) Register(w http.ResponseWriter, r *http.Request) {
	resp, err := h.sync.Register(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

// Partners lists registered partner sites (hub side)
func (h *AdminHandler) Partners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.repo.ListPartners(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"data": partners})
}
