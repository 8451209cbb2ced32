package domain

import "time"

// Page statuses
const (
	PageStatusDraft     = "draft"
	PageStatusPublished = "published"
)

// Sync link statuses
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusError   = "error"
)

// Page represents a landing page. On the authoring site it is a
// regular page; on the hub a shadow copy carries IsShadow=true plus
// the (SourceID, SourceURL) pair identifying its origin.
type Page struct {
	ID           int64             `json:"id"`
	Title        string            `json:"title"`
	Slug         string            `json:"slug"`
	Status       string            `json:"status"`
	HeroImageURL string            `json:"hero_image_url,omitempty"`
	Attributes   map[string]string `json:"attributes,omitempty"`

	// Shadow-copy identity. (SourceID, SourceURL) is the idempotency
	// key for replication: there is never more than one shadow per pair.
	IsShadow   bool       `json:"is_shadow,omitempty"`
	SourceID   int64      `json:"source_id,omitempty"`
	SourceURL  string     `json:"source_url,omitempty"`
	ReceivedAt *time.Time `json:"received_at,omitempty"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// SyncLink is the origin-side half of the replication pointer pair:
// which remote id our page maps to on the hub, and how the last push went.
type SyncLink struct {
	PageID       int64      `json:"page_id"`
	RemoteID     int64      `json:"remote_id"`
	Status       string     `json:"status"`
	LastError    string     `json:"last_error,omitempty"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
}

// Partner is a spoke site that registered itself with the hub.
type Partner struct {
	SiteURL      string    `json:"site_url"`
	SiteName     string    `json:"site_name"`
	RegisteredAt time.Time `json:"registered_at"`
}
