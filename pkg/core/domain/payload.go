package domain

// Wire types for the replication protocol. Field names are part of
// the cross-site contract; both sides must agree on them.

// SyncPayload is what a partner POSTs to the hub's receive endpoint.
type SyncPayload struct {
	SourceID  int64             `json:"source_id"`
	SourceURL string            `json:"source_url"`
	Title     string            `json:"title"`
	Slug      string            `json:"slug"`
	URL       string            `json:"url"`
	Meta      map[string]string `json:"meta,omitempty"`
}

// SyncResponse is the hub's answer to a push (and to a delete).
type SyncResponse struct {
	Success  bool   `json:"success"`
	SyncedID int64  `json:"synced_id,omitempty"`
	Message  string `json:"message,omitempty"`
}

// DeletePayload propagates an origin-side deletion. The receiver
// verifies SourceID/SourceURL against the shadow's recorded identity
// before deleting, so a peer can only delete shadows it created.
type DeletePayload struct {
	Action    string `json:"action"` // always "delete"
	SourceID  int64  `json:"source_id"`
	SourceURL string `json:"source_url"`
	RemoteID  int64  `json:"remote_id"`
}

// RegisterPayload is the one-time spoke-to-hub handshake.
type RegisterPayload struct {
	SiteURL  string `json:"site_url"`
	SiteName string `json:"site_name"`
}

// RegisterResponse acknowledges a registration.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}
