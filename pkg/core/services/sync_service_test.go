package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlistings/leadsync/pkg/adapters/repository/sqlite"
	"github.com/openlistings/leadsync/pkg/core/domain"
)

func newTestRepo(t *testing.T, name string) *sqlite.SQLiteRepository {
	t.Helper()
	repo, err := sqlite.NewSQLiteRepository("file:" + name + "?mode=memory&cache=shared")
	require.NoError(t, err, "in-memory db should open")
	return repo
}

type stubPeer struct {
	pushResp   *domain.SyncResponse
	pushErr    error
	deleteResp *domain.SyncResponse
	deleteErr  error
	lastPush   *domain.SyncPayload
	lastDelete *domain.DeletePayload
}

func (s *stubPeer) Push(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResponse, error) {
	s.lastPush = payload
	return s.pushResp, s.pushErr
}

func (s *stubPeer) Delete(ctx context.Context, payload *domain.DeletePayload) (*domain.SyncResponse, error) {
	s.lastDelete = payload
	return s.deleteResp, s.deleteErr
}

func (s *stubPeer) Register(ctx context.Context, payload *domain.RegisterPayload) (*domain.RegisterResponse, error) {
	return &domain.RegisterResponse{Success: true, Message: "registered"}, nil
}

func publishedPage(t *testing.T, repo *sqlite.SQLiteRepository, title, slug string) *domain.Page {
	t.Helper()
	page := &domain.Page{
		Title:     title,
		Slug:      slug,
		Status:    domain.PageStatusPublished,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), page))
	return page
}

func TestReceive_Idempotent(t *testing.T) {
	repo := newTestRepo(t, "sync_receive_idem")
	svc := NewSyncService(repo, nil, nil, nil, "https://hub.example", "hub")
	ctx := context.Background()

	payload := &domain.SyncPayload{
		SourceID:  42,
		SourceURL: "https://partner.example",
		Title:     "Open House",
		Slug:      "open-house",
		URL:       "https://partner.example/p/open-house",
		Meta:      map[string]string{"property_address": "12 Main St"},
	}

	first, err := svc.Receive(ctx, payload)
	require.NoError(t, err)
	require.True(t, first.Success)
	require.NotZero(t, first.SyncedID)

	// Same payload again: must update in place, never duplicate.
	payload.Title = "Open House Updated"
	second, err := svc.Receive(ctx, payload)
	require.NoError(t, err)
	require.True(t, second.Success)
	assert.Equal(t, first.SyncedID, second.SyncedID, "repeat push must land on the same shadow")

	shadow, err := repo.GetShadow(ctx, 42, "https://partner.example")
	require.NoError(t, err)
	require.NotNil(t, shadow)
	assert.Equal(t, "Open House Updated", shadow.Title)
	assert.True(t, shadow.IsShadow)

	count, err := repo.Count(ctx, map[string]interface{}{"is_shadow": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "exactly one shadow per (source_id, source_url)")
}

func TestReceive_RejectsMissingIdentity(t *testing.T) {
	repo := newTestRepo(t, "sync_receive_noident")
	svc := NewSyncService(repo, nil, nil, nil, "https://hub.example", "hub")

	resp, err := svc.Receive(context.Background(), &domain.SyncPayload{Title: "No Identity"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestReceiveDelete_IdentityChecked(t *testing.T) {
	repo := newTestRepo(t, "sync_delete_identity")
	svc := NewSyncService(repo, nil, nil, nil, "https://hub.example", "hub")
	ctx := context.Background()

	created, err := svc.Receive(ctx, &domain.SyncPayload{
		SourceID:  7,
		SourceURL: "https://partner.example",
		Title:     "To Delete",
		Slug:      "to-delete",
	})
	require.NoError(t, err)
	require.True(t, created.Success)

	// Wrong source id, right remote id: must be rejected.
	resp, err := svc.ReceiveDelete(ctx, &domain.DeletePayload{
		Action:    "delete",
		SourceID:  999,
		SourceURL: "https://partner.example",
		RemoteID:  created.SyncedID,
	})
	require.NoError(t, err)
	assert.False(t, resp.Success, "a shadow may only be deleted by the origin that created it")

	shadow, err := repo.GetShadow(ctx, 7, "https://partner.example")
	require.NoError(t, err)
	assert.NotNil(t, shadow, "rejected delete must leave the shadow in place")

	// Correct identity deletes.
	resp, err = svc.ReceiveDelete(ctx, &domain.DeletePayload{
		Action:    "delete",
		SourceID:  7,
		SourceURL: "https://partner.example",
		RemoteID:  created.SyncedID,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)

	shadow, err = repo.GetShadow(ctx, 7, "https://partner.example")
	require.NoError(t, err)
	assert.Nil(t, shadow)

	// Deleting an absent shadow is success (idempotent).
	resp, err = svc.ReceiveDelete(ctx, &domain.DeletePayload{
		Action:    "delete",
		SourceID:  7,
		SourceURL: "https://partner.example",
		RemoteID:  created.SyncedID,
	})
	require.NoError(t, err)
	assert.True(t, resp.Success)
}

func TestPush_StatusTransitions(t *testing.T) {
	repo := newTestRepo(t, "sync_push_status")
	peer := &stubPeer{pushResp: &domain.SyncResponse{Success: true, SyncedID: 900}}
	svc := NewSyncService(repo, peer, nil, nil, "https://partner.example", "partner")
	ctx := context.Background()

	page := publishedPage(t, repo, "Open House", "open-house")

	resp, err := svc.Push(ctx, page.ID)
	require.NoError(t, err)
	require.True(t, resp.Success)

	link, err := repo.GetSyncLink(ctx, page.ID)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, domain.SyncStatusSynced, link.Status)
	assert.Equal(t, int64(900), link.RemoteID)
	assert.Empty(t, link.LastError)
	require.NotNil(t, peer.lastPush)
	assert.Equal(t, page.ID, peer.lastPush.SourceID)
	assert.Equal(t, "https://partner.example", peer.lastPush.SourceURL)

	// A later failure flips to error but keeps the remote id so the
	// next success updates the same shadow.
	peer.pushResp = nil
	peer.pushErr = errors.New("connection refused")
	resp, err = svc.Push(ctx, page.ID)
	require.NoError(t, err)
	assert.False(t, resp.Success)

	link, err = repo.GetSyncLink(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusError, link.Status)
	assert.Equal(t, int64(900), link.RemoteID)
	assert.Contains(t, link.LastError, "connection refused")

	// error -> synced on the next good push.
	peer.pushErr = nil
	peer.pushResp = &domain.SyncResponse{Success: true, SyncedID: 900}
	resp, err = svc.Push(ctx, page.ID)
	require.NoError(t, err)
	require.True(t, resp.Success)

	link, err = repo.GetSyncLink(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncStatusSynced, link.Status)
}

func TestPush_UnpublishedPageSkipped(t *testing.T) {
	repo := newTestRepo(t, "sync_push_draft")
	peer := &stubPeer{pushResp: &domain.SyncResponse{Success: true, SyncedID: 1}}
	svc := NewSyncService(repo, peer, nil, nil, "https://partner.example", "partner")
	ctx := context.Background()

	page := &domain.Page{Title: "Draft", Slug: "draft", Status: domain.PageStatusDraft, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.Create(ctx, page))

	resp, err := svc.Push(ctx, page.ID)
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Nil(t, peer.lastPush, "drafts must not be pushed")
}

func TestDelete_PropagatesAndDropsLink(t *testing.T) {
	repo := newTestRepo(t, "sync_delete_push")
	peer := &stubPeer{
		pushResp:   &domain.SyncResponse{Success: true, SyncedID: 55},
		deleteResp: &domain.SyncResponse{Success: true},
	}
	svc := NewSyncService(repo, peer, nil, nil, "https://partner.example", "partner")
	ctx := context.Background()

	page := publishedPage(t, repo, "Short Lived", "short-lived")
	_, err := svc.Push(ctx, page.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, page.ID))
	require.NotNil(t, peer.lastDelete)
	assert.Equal(t, "delete", peer.lastDelete.Action)
	assert.Equal(t, page.ID, peer.lastDelete.SourceID)
	assert.Equal(t, int64(55), peer.lastDelete.RemoteID)

	link, err := repo.GetSyncLink(ctx, page.ID)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestDelete_NoLinkIsNoop(t *testing.T) {
	repo := newTestRepo(t, "sync_delete_nolink")
	peer := &stubPeer{}
	svc := NewSyncService(repo, peer, nil, nil, "https://partner.example", "partner")

	require.NoError(t, svc.Delete(context.Background(), 12345))
	assert.Nil(t, peer.lastDelete, "pages that never pushed have nothing to propagate")
}

func TestReceiveRegister_Upserts(t *testing.T) {
	repo := newTestRepo(t, "sync_register")
	svc := NewSyncService(repo, nil, nil, nil, "https://hub.example", "hub")
	ctx := context.Background()

	resp, err := svc.ReceiveRegister(ctx, &domain.RegisterPayload{SiteURL: "https://partner.example", SiteName: "Partner"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	// Re-registration with a new name updates, not duplicates.
	resp, err = svc.ReceiveRegister(ctx, &domain.RegisterPayload{SiteURL: "https://partner.example", SiteName: "Partner Renamed"})
	require.NoError(t, err)
	require.True(t, resp.Success)

	partners, err := repo.ListPartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)
	assert.Equal(t, "Partner Renamed", partners[0].SiteName)
}
