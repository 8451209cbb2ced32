package ports

import (
	"context"
	"time"

	"github.com/openlistings/leadsync/pkg/core/domain"
)

// PageRepository defines storage operations for pages and the
// replication/delivery bookkeeping around them
type PageRepository interface {
	Create(ctx context.Context, page *domain.Page) error
	GetByID(ctx context.Context, id int64) (*domain.Page, error)
	GetBySlug(ctx context.Context, slug string) (*domain.Page, error)
	Update(ctx context.Context, page *domain.Page) error
	Delete(ctx context.Context, id int64) error // Soft delete
	List(ctx context.Context, limit, offset int, filters map[string]interface{}) ([]domain.Page, error)
	Count(ctx context.Context, filters map[string]interface{}) (int64, error)

	// Shadow copies (hub side). Lookup is by the replication
	// idempotency key (sourceID, sourceURL).
	GetShadow(ctx context.Context, sourceID int64, sourceURL string) (*domain.Page, error)

	// Sync linkage (origin side)
	GetSyncLink(ctx context.Context, pageID int64) (*domain.SyncLink, error)
	SaveSyncLink(ctx context.Context, link *domain.SyncLink) error
	DeleteSyncLink(ctx context.Context, pageID int64) error

	// Partner registry (hub side)
	UpsertPartner(ctx context.Context, partner *domain.Partner) error
	ListPartners(ctx context.Context) ([]domain.Partner, error)

	// Submissions
	CreateSubmission(ctx context.Context, sub *domain.Submission) error
	GetSubmission(ctx context.Context, id int64) (*domain.Submission, error)

	// Analytics events
	RecordEvent(ctx context.Context, event *domain.PageEvent) error
	HasRecentEvent(ctx context.Context, pageID int64, eventType, fingerprint string, since time.Time) (bool, error)
	GetPageStats(ctx context.Context, pageID int64) (*domain.PageStats, error)

	// Delivery retry queue
	EnqueueDelivery(ctx context.Context, attempt *domain.DeliveryAttempt) error
	ListDeliveries(ctx context.Context) ([]domain.DeliveryAttempt, error)
	UpdateDelivery(ctx context.Context, attempt *domain.DeliveryAttempt) error
	RemoveDelivery(ctx context.Context, id int64) error
	ClearDeliveries(ctx context.Context) error

	// Activity log (capped, oldest evicted on append)
	AppendActivity(ctx context.Context, entry *domain.ActivityEntry) error
	RecentActivity(ctx context.Context, limit int) ([]domain.ActivityEntry, error)

	// Options (narrow key/value store for runtime-settable values)
	GetOption(ctx context.Context, key string) (string, error)
	SetOption(ctx context.Context, key, value string) error
}

// PeerClient sends replication traffic to the remote site
type PeerClient interface {
	Push(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResponse, error)
	Delete(ctx context.Context, payload *domain.DeletePayload) (*domain.SyncResponse, error)
	Register(ctx context.Context, payload *domain.RegisterPayload) (*domain.RegisterResponse, error)
}

// WebhookSender posts a lead event to the configured endpoint.
// Implementations return an error for network failures and for
// HTTP statuses >= 400; the status line is returned either way.
type WebhookSender interface {
	Send(ctx context.Context, payload []byte) (status string, err error)
}

// Sideloader downloads a remote image and re-hosts it locally,
// returning the local URL.
type Sideloader interface {
	Sideload(ctx context.Context, remoteURL string) (string, error)
}

// SyncService is the replication engine
type SyncService interface {
	Push(ctx context.Context, pageID int64) (*domain.SyncResponse, error)
	Receive(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResponse, error)
	Delete(ctx context.Context, pageID int64) error
	ReceiveDelete(ctx context.Context, payload *domain.DeletePayload) (*domain.SyncResponse, error)
	Register(ctx context.Context) (*domain.RegisterResponse, error)
	ReceiveRegister(ctx context.Context, payload *domain.RegisterPayload) (*domain.RegisterResponse, error)
}

// DeliveryService is the webhook delivery queue
type DeliveryService interface {
	Deliver(ctx context.Context, event *domain.LeadEvent)
	RetrySweep(ctx context.Context) (*domain.SweepResult, error)
	Queue(ctx context.Context) ([]domain.DeliveryAttempt, error)
	ClearQueue(ctx context.Context) error
}

// AnalyticsService records page events with visitor dedup
type AnalyticsService interface {
	Record(ctx context.Context, pageID int64, eventType, ip, userAgent string) (recorded bool, err error)
	PageStats(ctx context.Context, pageID int64) (*domain.PageStats, error)
}

// PageService is the authoring-side page logic
type PageService interface {
	CreatePage(ctx context.Context, title, slug, heroImageURL string, attributes map[string]string) (*domain.Page, error)
	GetPage(ctx context.Context, id int64) (*domain.Page, error)
	GetPageBySlug(ctx context.Context, slug string) (*domain.Page, error)
	UpdatePage(ctx context.Context, id int64, title, heroImageURL string, attributes map[string]string) (*domain.Page, error)
	PublishPage(ctx context.Context, id int64) (*domain.Page, error)
	DeletePage(ctx context.Context, id int64) error
	ListPages(ctx context.Context, page, limit int, search string) ([]domain.Page, int64, error)
}

// LeadService captures submissions and triggers delivery
type LeadService interface {
	SubmitLead(ctx context.Context, pageID int64, firstName, lastName, email, phone string, responses map[string]string, ip, userAgent string) (*domain.Submission, error)
}
