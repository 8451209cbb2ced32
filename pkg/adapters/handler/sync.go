package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/ports"
)

// SyncHandler exposes the hub-side replication endpoints. Auth is the
// shared X-API-Key enforced by middleware; the X-Partner-URL header
// on pushes is informational (the payload's source_url is what binds
// the shadow's identity).
type SyncHandler struct {
	sync ports.SyncService
}

func NewSyncHandler(sync ports.SyncService) *SyncHandler {
	return &SyncHandler{sync: sync}
}

// Receive an inbound push
func (h *SyncHandler) Receive(w http.ResponseWriter, r *http.Request) {
	var payload domain.SyncPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if partner := r.Header.Get("X-Partner-URL"); partner != "" && partner != payload.SourceURL {
		log.Printf("sync: partner header %s disagrees with payload source %s", partner, payload.SourceURL)
	}

	resp, err := h.sync.Receive(r.Context(), &payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

// ReceiveDelete an inbound delete push
func (h *SyncHandler) ReceiveDelete(w http.ResponseWriter, r *http.Request) {
	var payload domain.DeletePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.sync.ReceiveDelete(r.Context(), &payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(resp)
}

// ReceiveRegister a partner handshake
func (h *SyncHandler) ReceiveRegister(w http.ResponseWriter, r *http.Request) {
	var payload domain.RegisterPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.sync.ReceiveRegister(r.Context(), &payload)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(resp)
}
