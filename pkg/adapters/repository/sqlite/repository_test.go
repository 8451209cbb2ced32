package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/openlistings/leadsync/pkg/core/domain"
)

func newRepo(t *testing.T, name string) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository("file:" + name + "?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	return repo
}

func TestActivityLogCap(t *testing.T) {
	repo := newRepo(t, "repo_activity_cap")
	ctx := context.Background()

	for i := 1; i <= 150; i++ {
		entry := &domain.ActivityEntry{
			CreatedAt: time.Now(),
			Direction: domain.ActivityPush,
			PageID:    int64(i),
			Status:    domain.ActivitySuccess,
			Message:   fmt.Sprintf("entry %d", i),
		}
		if err := repo.AppendActivity(ctx, entry); err != nil {
			t.Fatalf("append %d failed: %v", i, err)
		}
	}

	entries, err := repo.RecentActivity(ctx, domain.ActivityLogCap)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != domain.ActivityLogCap {
		t.Fatalf("expected %d entries, got %d", domain.ActivityLogCap, len(entries))
	}

	// Newest first: entries 150 down to 51 survive.
	if entries[0].PageID != 150 {
		t.Errorf("expected newest entry 150 first, got %d", entries[0].PageID)
	}
	if entries[len(entries)-1].PageID != 51 {
		t.Errorf("expected oldest surviving entry 51, got %d", entries[len(entries)-1].PageID)
	}
}

func TestShadowLookupByIdentityPair(t *testing.T) {
	repo := newRepo(t, "repo_shadow_identity")
	ctx := context.Background()
	now := time.Now()

	shadow := &domain.Page{
		Title:      "Shadow",
		Slug:       "shadow-abc-42-open-house",
		Status:     domain.PageStatusPublished,
		IsShadow:   true,
		SourceID:   42,
		SourceURL:  "https://partner.example",
		ReceivedAt: &now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Create(ctx, shadow); err != nil {
		t.Fatal(err)
	}

	got, err := repo.GetShadow(ctx, 42, "https://partner.example")
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.ID != shadow.ID {
		t.Fatalf("expected shadow %d, got %+v", shadow.ID, got)
	}

	// Same source id from a different origin is a different shadow.
	got, err = repo.GetShadow(ctx, 42, "https://other.example")
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected no shadow for other origin, got %+v", got)
	}

	// The identity pair is unique while the shadow lives.
	dup := &domain.Page{
		Title:     "Dup",
		Slug:      "shadow-other-slug",
		Status:    domain.PageStatusPublished,
		IsShadow:  true,
		SourceID:  42,
		SourceURL: "https://partner.example",
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, dup); err == nil {
		t.Error("expected unique constraint violation for duplicate identity pair")
	}
}

func TestDeliveryQueueRoundTrip(t *testing.T) {
	repo := newRepo(t, "repo_delivery_queue")
	ctx := context.Background()
	now := time.Now()

	attempt := &domain.DeliveryAttempt{
		UUID:          "evt-1",
		Payload:       []byte(`{"event":"new_lead"}`),
		TargetEventID: "evt-1",
		AttemptCount:  1,
		FirstFailedAt: now,
		LastAttemptAt: now,
		LastResponse:  "connection refused",
	}
	if err := repo.EnqueueDelivery(ctx, attempt); err != nil {
		t.Fatal(err)
	}

	attempts, err := repo.ListDeliveries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 1 {
		t.Fatalf("expected 1 queued attempt, got %d", len(attempts))
	}
	if string(attempts[0].Payload) != `{"event":"new_lead"}` {
		t.Errorf("payload mismatch: %s", attempts[0].Payload)
	}

	attempts[0].AttemptCount = 2
	attempts[0].LastResponse = "503 Service Unavailable"
	if err := repo.UpdateDelivery(ctx, &attempts[0]); err != nil {
		t.Fatal(err)
	}

	attempts, err = repo.ListDeliveries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if attempts[0].AttemptCount != 2 {
		t.Errorf("expected attempt_count 2, got %d", attempts[0].AttemptCount)
	}

	if err := repo.RemoveDelivery(ctx, attempts[0].ID); err != nil {
		t.Fatal(err)
	}
	attempts, err = repo.ListDeliveries(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(attempts) != 0 {
		t.Errorf("expected empty queue, got %d", len(attempts))
	}
}

func TestOptionsRoundTrip(t *testing.T) {
	repo := newRepo(t, "repo_options")
	ctx := context.Background()

	v, err := repo.GetOption(ctx, "missing")
	if err != nil {
		t.Fatal(err)
	}
	if v != "" {
		t.Errorf("expected empty value for missing key, got %q", v)
	}

	if err := repo.SetOption(ctx, "hub_registered_at", "2025-06-01T00:00:00Z"); err != nil {
		t.Fatal(err)
	}
	if err := repo.SetOption(ctx, "hub_registered_at", "2025-06-02T00:00:00Z"); err != nil {
		t.Fatal(err)
	}

	v, err = repo.GetOption(ctx, "hub_registered_at")
	if err != nil {
		t.Fatal(err)
	}
	if v != "2025-06-02T00:00:00Z" {
		t.Errorf("expected overwritten value, got %q", v)
	}
}
