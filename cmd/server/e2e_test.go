package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/openlistings/leadsync/pkg/adapters/handler"
	"github.com/openlistings/leadsync/pkg/adapters/peer"
	"github.com/openlistings/leadsync/pkg/adapters/repository/sqlite"
	"github.com/openlistings/leadsync/pkg/adapters/webhook"
	"github.com/openlistings/leadsync/pkg/config"
	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/core/services"
)

const testAPIKey = "e2e-shared-secret"

// startHub spins up a hub site with the full router so partner pushes
// travel the real HTTP path, key middleware included.
func startHub(t *testing.T) (*httptest.Server, *sqlite.SQLiteRepository) {
	t.Helper()

	repo, err := sqlite.NewSQLiteRepository("file:e2e_hub?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to init hub db: %v", err)
	}

	cfg := &config.Config{
		SiteURL:    "https://hub.example",
		SiteName:   "Hub",
		SiteRole:   config.RoleHub,
		SyncAPIKey: testAPIKey,
		JWTSecret:  "hub-secret",
		MediaDir:   t.TempDir(),
	}

	syncService := services.NewSyncService(repo, nil, nil, nil, cfg.SiteURL, cfg.SiteName)
	deliveryService := services.NewDeliveryService(repo, nil, nil)
	analyticsService := services.NewAnalyticsService(repo)
	pageService := services.NewPageService(repo, syncService)
	leadService := services.NewLeadService(repo, analyticsService, deliveryService, cfg.SiteURL, cfg.SiteName)

	mux := handler.NewRouter(cfg, handler.Deps{
		Repo:      repo,
		Pages:     pageService,
		Leads:     leadService,
		Analytics: analyticsService,
		Sync:      syncService,
		Delivery:  deliveryService,
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, repo
}

func TestReplicationEndToEnd(t *testing.T) {
	hub, hubRepo := startHub(t)

	partnerRepo, err := sqlite.NewSQLiteRepository("file:e2e_partner?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to init partner db: %v", err)
	}

	peerClient := peer.NewClient(hub.URL, testAPIKey, "https://partner.example")
	if peerClient == nil {
		t.Fatal("peer client should be configured")
	}
	partnerSync := services.NewSyncService(partnerRepo, peerClient, nil, nil, "https://partner.example", "Partner Site")

	ctx := context.Background()

	// Register the spoke with the hub.
	regResp, err := partnerSync.Register(ctx)
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if !regResp.Success {
		t.Fatalf("Register rejected: %s", regResp.Message)
	}
	partners, err := hubRepo.ListPartners(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(partners) != 1 || partners[0].SiteURL != "https://partner.example" {
		t.Fatalf("expected registered partner, got %+v", partners)
	}

	// Author and push a page.
	page := &domain.Page{
		Title:      "Open House",
		Slug:       "open-house",
		Status:     domain.PageStatusPublished,
		Attributes: map[string]string{"property_address": "12 Main St", "property_price": "450000"},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := partnerRepo.Create(ctx, page); err != nil {
		t.Fatal(err)
	}

	pushResp, err := partnerSync.Push(ctx, page.ID)
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if !pushResp.Success {
		t.Fatalf("Push rejected: %s", pushResp.Message)
	}

	link, err := partnerRepo.GetSyncLink(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if link == nil || link.Status != domain.SyncStatusSynced {
		t.Fatalf("expected synced link, got %+v", link)
	}
	if link.RemoteID != pushResp.SyncedID {
		t.Errorf("link remote id %d != response synced id %d", link.RemoteID, pushResp.SyncedID)
	}

	shadow, err := hubRepo.GetShadow(ctx, page.ID, "https://partner.example")
	if err != nil {
		t.Fatal(err)
	}
	if shadow == nil {
		t.Fatal("hub should have a shadow copy")
	}
	if shadow.Title != "Open House" {
		t.Errorf("shadow title mismatch: %s", shadow.Title)
	}
	if shadow.Attributes["property_address"] != "12 Main St" {
		t.Errorf("shadow attributes mismatch: %+v", shadow.Attributes)
	}

	// Re-push with a new title: same shadow, updated in place.
	page.Title = "Open House Updated"
	page.UpdatedAt = time.Now()
	if err := partnerRepo.Update(ctx, page); err != nil {
		t.Fatal(err)
	}
	pushResp2, err := partnerSync.Push(ctx, page.ID)
	if err != nil {
		t.Fatalf("Re-push failed: %v", err)
	}
	if pushResp2.SyncedID != pushResp.SyncedID {
		t.Errorf("re-push created a new shadow: %d != %d", pushResp2.SyncedID, pushResp.SyncedID)
	}

	count, err := hubRepo.Count(ctx, map[string]interface{}{"is_shadow": true})
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected exactly one shadow, got %d", count)
	}

	updated, err := hubRepo.GetShadow(ctx, page.ID, "https://partner.example")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Title != "Open House Updated" {
		t.Errorf("shadow not updated in place: %s", updated.Title)
	}

	// Delete propagation.
	if err := partnerRepo.Delete(ctx, page.ID); err != nil {
		t.Fatal(err)
	}
	if err := partnerSync.Delete(ctx, page.ID); err != nil {
		t.Fatalf("Delete push failed: %v", err)
	}

	gone, err := hubRepo.GetShadow(ctx, page.ID, "https://partner.example")
	if err != nil {
		t.Fatal(err)
	}
	if gone != nil {
		t.Errorf("shadow should be deleted, got %+v", gone)
	}
}

func TestPushRejectedWithoutAPIKey(t *testing.T) {
	hub, _ := startHub(t)

	partnerRepo, err := sqlite.NewSQLiteRepository("file:e2e_badkey?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}

	peerClient := peer.NewClient(hub.URL, "wrong-key", "https://partner.example")
	partnerSync := services.NewSyncService(partnerRepo, peerClient, nil, nil, "https://partner.example", "Partner Site")

	ctx := context.Background()
	page := &domain.Page{Title: "Nope", Slug: "nope", Status: domain.PageStatusPublished, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	if err := partnerRepo.Create(ctx, page); err != nil {
		t.Fatal(err)
	}

	resp, err := partnerSync.Push(ctx, page.ID)
	if err != nil {
		t.Fatalf("Push should swallow transport errors: %v", err)
	}
	if resp.Success {
		t.Error("push with a wrong key must fail")
	}

	link, err := partnerRepo.GetSyncLink(ctx, page.ID)
	if err != nil {
		t.Fatal(err)
	}
	if link == nil || link.Status != domain.SyncStatusError {
		t.Fatalf("expected error link, got %+v", link)
	}
}

func TestLeadDeliveryEndToEnd(t *testing.T) {
	var mu sync.Mutex
	var received []map[string]interface{}
	var secrets []string

	endpoint := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		received = append(received, body)
		secrets = append(secrets, r.Header.Get("X-Webhook-Secret"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer endpoint.Close()

	repo, err := sqlite.NewSQLiteRepository("file:e2e_leads?mode=memory&cache=shared")
	if err != nil {
		t.Fatal(err)
	}

	sender := webhook.NewSender(endpoint.URL, "hook-secret")
	deliveryService := services.NewDeliveryService(repo, sender, nil)
	analyticsService := services.NewAnalyticsService(repo)
	leadService := services.NewLeadService(repo, analyticsService, deliveryService, "https://partner.example", "Partner Site")

	ctx := context.Background()
	page := &domain.Page{
		Title:      "Open House",
		Slug:       "open-house",
		Status:     domain.PageStatusPublished,
		Attributes: map[string]string{"realtor_name": "Grace Hopper"},
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := repo.Create(ctx, page); err != nil {
		t.Fatal(err)
	}

	sub, err := leadService.SubmitLead(ctx, page.ID, "Ada", "Lovelace", "ada@example.com", "555-0100",
		map[string]string{"tour": "saturday"}, "203.0.113.9", "Mozilla/5.0")
	if err != nil {
		t.Fatalf("SubmitLead failed: %v", err)
	}
	if sub.ID == 0 {
		t.Fatal("submission should be persisted")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("expected one webhook delivery, got %d", len(received))
	}
	if received[0]["event"] != "new_lead" {
		t.Errorf("expected new_lead event, got %v", received[0]["event"])
	}
	lead, _ := received[0]["lead"].(map[string]interface{})
	if lead["email"] != "ada@example.com" {
		t.Errorf("lead email mismatch: %v", lead)
	}
	realtor, _ := received[0]["realtor"].(map[string]interface{})
	if realtor["name"] != "Grace Hopper" {
		t.Errorf("realtor section mismatch: %v", realtor)
	}
	if secrets[0] != "hook-secret" {
		t.Errorf("webhook secret header missing, got %q", secrets[0])
	}

	// Delivery succeeded synchronously, so the queue stays empty.
	queue, err := deliveryService.Queue(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 0 {
		t.Errorf("expected empty retry queue, got %d", len(queue))
	}
}
