package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"

	"github.com/openlistings/leadsync/pkg/ports"
)

type HTTPHandler struct {
	pages     ports.PageService
	leads     ports.LeadService
	analytics ports.AnalyticsService
}

func NewHTTPHandler(pages ports.PageService, leads ports.LeadService, analytics ports.AnalyticsService) *HTTPHandler {
	return &HTTPHandler{pages: pages, leads: leads, analytics: analytics}
}

// CreatePageRequest payload
type CreatePageRequest struct {
	Title        string            `json:"title"`
	Slug         string            `json:"slug"`
	HeroImageURL string            `json:"hero_image_url,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// UpdatePageRequest payload
type UpdatePageRequest struct {
	Title        string            `json:"title,omitempty"`
	HeroImageURL string            `json:"hero_image_url,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`
}

// SubmitLeadRequest payload
type SubmitLeadRequest struct {
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Email     string            `json:"email"`
	Phone     string            `json:"phone"`
	Responses map[string]string `json:"responses,omitempty"`
}

// TrackEventRequest payload
type TrackEventRequest struct {
	EventType string `json:"event_type"`
}

// Create Page
func (h *HTTPHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	page, err := h.pages.CreatePage(r.Context(), req.Title, req.Slug, req.HeroImageURL, req.Attributes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(page)
}

// Get Public Page by slug
func (h *HTTPHandler) GetBySlug(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	if slug == "" {
		http.Error(w, "Slug missing", http.StatusBadRequest)
		return
	}

	page, err := h.pages.GetPageBySlug(r.Context(), slug)
	if err != nil {
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}

	json.NewEncoder(w).Encode(page)
}

// Track a view/scan event with visitor dedup
func (h *HTTPHandler) Track(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	page, err := h.pages.GetPageBySlug(r.Context(), slug)
	if err != nil {
		http.Error(w, "Page not found", http.StatusNotFound)
		return
	}

	var req TrackEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	recorded, err := h.analytics.Record(r.Context(), page.ID, req.EventType, clientIP(r), r.UserAgent())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]bool{"recorded": recorded})
}

// Submit Lead
func (h *HTTPHandler) SubmitLead(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	var req SubmitLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	sub, err := h.leads.SubmitLead(r.Context(), id, req.FirstName, req.LastName, req.Email, req.Phone, req.Responses, clientIP(r), r.UserAgent())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(sub)
}

// Get Stats for a Page
func (h *HTTPHandler) Stats(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	stats, err := h.analytics.PageStats(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(stats)
}

// List Pages
func (h *HTTPHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	search := r.URL.Query().Get("search")

	pages, count, err := h.pages.ListPages(r.Context(), page, limit, search)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"data":  pages,
		"total": count,
		"page":  page,
		"limit": limit,
	}
	json.NewEncoder(w).Encode(resp)
}

// Update Page
func (h *HTTPHandler) Update(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	var req UpdatePageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}

	page, err := h.pages.UpdatePage(r.Context(), id, req.Title, req.HeroImageURL, req.Attributes)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(page)
}

// Publish Page (triggers replication push)
func (h *HTTPHandler) Publish(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	page, err := h.pages.PublishPage(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(page)
}

// Delete Page
func (h *HTTPHandler) Delete(w http.ResponseWriter, r *http.Request) {
	idStr := r.PathValue("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid ID", http.StatusBadRequest)
		return
	}

	if err := h.pages.DeletePage(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// clientIP strips the port from RemoteAddr; falls back to the raw value.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
