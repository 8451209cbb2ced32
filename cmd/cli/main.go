package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/openlistings/leadsync/pkg/adapters/peer"
	"github.com/openlistings/leadsync/pkg/adapters/repository/sqlite"
	"github.com/openlistings/leadsync/pkg/adapters/webhook"
	"github.com/openlistings/leadsync/pkg/config"
	"github.com/openlistings/leadsync/pkg/core/services"
	"github.com/openlistings/leadsync/pkg/ports"
)

const usage = "expected 'sweep', 'queue', 'clear-queue', 'log' or 'register' subcommands"

func main() {
	sweepCmd := flag.NewFlagSet("sweep", flag.ExitOnError)
	queueCmd := flag.NewFlagSet("queue", flag.ExitOnError)
	clearCmd := flag.NewFlagSet("clear-queue", flag.ExitOnError)
	logCmd := flag.NewFlagSet("log", flag.ExitOnError)
	logLimit := logCmd.Int("limit", 50, "number of entries to show")
	registerCmd := flag.NewFlagSet("register", flag.ExitOnError)

	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	cfg := config.Load()
	repo, err := sqlite.NewSQLiteRepository(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to db: %v", err)
	}

	ctx := context.Background()

	switch os.Args[1] {
	case "sweep":
		sweepCmd.Parse(os.Args[2:])
		var sender ports.WebhookSender
		if ws := webhook.NewSender(cfg.LeadWebhookURL, cfg.LeadWebhookSecret); ws != nil {
			sender = ws
		}
		delivery := services.NewDeliveryService(repo, sender, nil)
		result, err := delivery.RetrySweep(ctx)
		if err != nil {
			log.Fatalf("Sweep failed: %v", err)
		}
		log.Printf("Sweep done: %d retried, %d succeeded", result.Retried, result.Succeeded)
	case "queue":
		queueCmd.Parse(os.Args[2:])
		attempts, err := repo.ListDeliveries(ctx)
		if err != nil {
			log.Fatalf("Queue read failed: %v", err)
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(attempts); err != nil {
			log.Fatalf("Encode failed: %v", err)
		}
	case "clear-queue":
		clearCmd.Parse(os.Args[2:])
		if err := repo.ClearDeliveries(ctx); err != nil {
			log.Fatalf("Clear failed: %v", err)
		}
		log.Println("Delivery queue cleared")
	case "log":
		logCmd.Parse(os.Args[2:])
		entries, err := repo.RecentActivity(ctx, *logLimit)
		if err != nil {
			log.Fatalf("Log read failed: %v", err)
		}
		for _, e := range entries {
			fmt.Printf("%s  %-15s  page=%-5d  %-7s  %s\n",
				e.CreatedAt.Format("2006-01-02 15:04:05"), e.Direction, e.PageID, e.Status, e.Message)
		}
	case "register":
		registerCmd.Parse(os.Args[2:])
		peerClient := peer.NewClient(cfg.HubURL, cfg.SyncAPIKey, cfg.SiteURL)
		if peerClient == nil {
			log.Fatal("HUB_URL and SYNC_API_KEY must be configured")
		}
		syncService := services.NewSyncService(repo, peerClient, nil, nil, cfg.SiteURL, cfg.SiteName)
		resp, err := syncService.Register(ctx)
		if err != nil {
			log.Fatalf("Register failed: %v", err)
		}
		if resp.Success {
			log.Printf("Registered with hub %s", cfg.HubURL)
		} else {
			log.Printf("Hub rejected registration: %s", resp.Message)
		}
	default:
		fmt.Println(usage)
		os.Exit(1)
	}
}
