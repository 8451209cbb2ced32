package domain

import "time"

// ActivityLogCap is the maximum number of retained log entries.
// Older entries are evicted on append, ring-buffer style.
const ActivityLogCap = 100

// Activity directions
const (
	ActivityPush          = "push"
	ActivityReceive       = "receive"
	ActivityDelete        = "delete"
	ActivityDeleteReceive = "delete-receive"
	ActivityRegister      = "register"
	ActivityDeliver       = "deliver"
)

// Activity statuses
const (
	ActivitySuccess = "success"
	ActivityError   = "error"
)

// ActivityEntry records one replication or delivery attempt for operability.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Direction string    `json:"direction"`
	PageID    int64     `json:"page_id,omitempty"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
}
