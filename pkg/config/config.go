package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Site roles. A hub accepts pushes from partners; a partner pushes
// its pages to the hub and forwards leads to the webhook.
const (
	RolePartner = "partner"
	RoleHub     = "hub"
)

type Config struct {
	Port        string
	DatabaseURL string
	AppEnv      string

	// Site identity & replication
	SiteURL    string
	SiteName   string
	SiteRole   string
	HubURL     string
	SyncAPIKey string

	// Lead delivery
	LeadWebhookURL    string
	LeadWebhookSecret string
	SweepIntervalMins int

	// Media sideloading
	MediaDir     string
	MediaBaseURL string

	// Admin auth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	JWTSecret          string
	FrontendURL        string
	AllowedEmails      []string
}

func Load() *Config {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)

	return &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:db.sqlite"),
		AppEnv:      getEnv("APP_ENV", "local"),

		SiteURL:    getEnv("SITE_URL", "http://localhost:8080"),
		SiteName:   getEnv("SITE_NAME", "leadsync"),
		SiteRole:   getEnv("SITE_ROLE", RolePartner),
		HubURL:     getEnv("HUB_URL", ""),
		SyncAPIKey: getEnv("SYNC_API_KEY", ""),

		LeadWebhookURL:    getEnv("LEAD_WEBHOOK_URL", ""),
		LeadWebhookSecret: getEnv("LEAD_WEBHOOK_SECRET", ""),
		SweepIntervalMins: getEnvInt("SWEEP_INTERVAL_MINUTES", 10),

		MediaDir:     getEnv("MEDIA_DIR", "media"),
		MediaBaseURL: getEnv("MEDIA_BASE_URL", ""),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/auth/google/callback"),
		JWTSecret:          getEnv("JWT_SECRET", "secret"),
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:8080/dashboard"),
		AllowedEmails:      splitCSV(getEnv("ALLOWED_EMAILS", "")),
	}
}

// IsHub reports whether this site receives pushes instead of sending them.
func (c *Config) IsHub() bool {
	return c.SiteRole == RoleHub
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
