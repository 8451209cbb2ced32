package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openlistings/leadsync/pkg/adapters/handler"
	"github.com/openlistings/leadsync/pkg/adapters/media"
	"github.com/openlistings/leadsync/pkg/adapters/peer"
	"github.com/openlistings/leadsync/pkg/adapters/repository/sqlite"
	"github.com/openlistings/leadsync/pkg/adapters/webhook"
	"github.com/openlistings/leadsync/pkg/config"
	"github.com/openlistings/leadsync/pkg/core/services"
	"github.com/openlistings/leadsync/pkg/ports"
)

func main() {
	cfg := config.Load()

	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	mediaBase := cfg.MediaBaseURL
	if mediaBase == "" {
		mediaBase = cfg.SiteURL
	}
	sideloader, err := media.NewSideloader(cfg.MediaDir, mediaBase)
	if err != nil {
		log.Fatalf("Failed to prepare media dir: %v", err)
	}

	// Background worker: replication pushes, deliveries and
	// sideloads all run here, off the request path.
	tasks := services.NewTaskRunner()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go tasks.Run(ctx)

	// Keep the interfaces nil when unconfigured; a typed nil pointer
	// would defeat the services' nil checks.
	var peerClient ports.PeerClient
	if pc := peer.NewClient(cfg.HubURL, cfg.SyncAPIKey, cfg.SiteURL); pc != nil {
		peerClient = pc
	}
	var sender ports.WebhookSender
	if ws := webhook.NewSender(cfg.LeadWebhookURL, cfg.LeadWebhookSecret); ws != nil {
		sender = ws
	}

	syncService := services.NewSyncService(repo, peerClient, sideloader, tasks, cfg.SiteURL, cfg.SiteName)
	deliveryService := services.NewDeliveryService(repo, sender, tasks)
	analyticsService := services.NewAnalyticsService(repo)
	pageService := services.NewPageService(repo, syncService)
	leadService := services.NewLeadService(repo, analyticsService, deliveryService, cfg.SiteURL, cfg.SiteName)

	// Periodic retry sweep. An external scheduler can also hit the
	// admin sweep endpoint; the service serializes overlapping sweeps.
	if cfg.LeadWebhookURL != "" {
		interval := time.Duration(cfg.SweepIntervalMins) * time.Minute
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if result, err := deliveryService.RetrySweep(ctx); err != nil {
						log.Printf("Retry sweep failed: %v", err)
					} else if result.Retried > 0 {
						log.Printf("Retry sweep: %d retried, %d succeeded", result.Retried, result.Succeeded)
					}
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	mux := handler.NewRouter(cfg, handler.Deps{
		Repo:      repo,
		Pages:     pageService,
		Leads:     leadService,
		Analytics: analyticsService,
		Sync:      syncService,
		Delivery:  deliveryService,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		tasks.Stop()
	}()

	log.Printf("Server starting on port %s as %s site", cfg.Port, cfg.SiteRole)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
