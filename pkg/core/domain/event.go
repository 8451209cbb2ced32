package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Analytics event types. Submissions are always recorded; views and
// scans are deduplicated per visitor within DedupWindow.
const (
	EventView       = "view"
	EventScan       = "scan"
	EventSubmission = "submission"
)

// DedupWindow is how long a repeat view/scan from the same visitor is
// treated as noise.
const DedupWindow = 24 * time.Hour

// PageEvent is one recorded analytics event.
type PageEvent struct {
	ID          int64     `json:"id"`
	PageID      int64     `json:"page_id"`
	EventType   string    `json:"event_type"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
}

// PageStats aggregates recorded events for a page
type PageStats struct {
	Totals     map[string]int64 `json:"totals"`      // count by event type
	DailyViews []DailyCount     `json:"daily_views"` // timeline
}

type DailyCount struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int64  `json:"count"`
}

// Fingerprint derives a stable visitor identity from network address
// and user agent. Best-effort only: NAT'd visitors sharing a UA
// collide, which is accepted for analytics.
func Fingerprint(ip, userAgent string) string {
	sum := sha256.Sum256([]byte(ip + "|" + userAgent))
	return hex.EncodeToString(sum[:])
}
