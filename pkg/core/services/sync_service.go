package services

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/ports"
)

// SyncService is the replication engine. A partner pushes its pages
// to the hub; the hub keeps one shadow copy per (source_id, source_url)
// pair and updates it in place on every repeat push. There is no
// push-side retry queue: pushes are idempotent and the next local
// mutation re-pushes the full current state anyway.
type SyncService struct {
	repo       ports.PageRepository
	peer       ports.PeerClient
	sideloader ports.Sideloader
	tasks      *TaskRunner

	siteURL  string
	siteName string
}

func NewSyncService(repo ports.PageRepository, peer ports.PeerClient, sideloader ports.Sideloader, tasks *TaskRunner, siteURL, siteName string) *SyncService {
	return &SyncService{
		repo:       repo,
		peer:       peer,
		sideloader: sideloader,
		tasks:      tasks,
		siteURL:    siteURL,
		siteName:   siteName,
	}
}

// Push serializes the page's current state and sends it to the hub.
// Failures update the sync link and the activity log but are also
// returned so admin-triggered pushes can surface them.
func (s *SyncService) Push(ctx context.Context, pageID int64) (*domain.SyncResponse, error) {
	if s.peer == nil {
		// Hub URL / API key not configured. Not an error for the
		// caller: replication is a best-effort side effect.
		return &domain.SyncResponse{Success: false, Message: "replication not configured"}, nil
	}

	page, err := s.repo.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.New("page not found")
	}
	if page.Status != domain.PageStatusPublished {
		return &domain.SyncResponse{Success: false, Message: "page not published"}, nil
	}

	payload := &domain.SyncPayload{
		SourceID:  page.ID,
		SourceURL: s.siteURL,
		Title:     page.Title,
		Slug:      page.Slug,
		URL:       s.siteURL + "/p/" + page.Slug,
		Meta:      page.Attributes,
	}
	if page.HeroImageURL != "" {
		if payload.Meta == nil {
			payload.Meta = map[string]string{}
		}
		payload.Meta["hero_image_url"] = page.HeroImageURL
	}

	resp, err := s.peer.Push(ctx, payload)
	if err != nil || !resp.Success {
		msg := "push rejected"
		if err != nil {
			msg = err.Error()
		} else if resp.Message != "" {
			msg = resp.Message
		}
		s.recordPushFailure(ctx, page.ID, msg)
		if resp == nil {
			resp = &domain.SyncResponse{Success: false, Message: msg}
		}
		return resp, nil
	}

	now := time.Now()
	link := &domain.SyncLink{
		PageID:       page.ID,
		RemoteID:     resp.SyncedID,
		Status:       domain.SyncStatusSynced,
		LastSyncedAt: &now,
	}
	if err := s.repo.SaveSyncLink(ctx, link); err != nil {
		log.Printf("sync: failed to save link for page %d: %v", page.ID, err)
	}
	s.logActivity(ctx, domain.ActivityPush, page.ID, domain.ActivitySuccess,
		fmt.Sprintf("pushed %q as remote %d", page.Title, resp.SyncedID))
	return resp, nil
}

// recordPushFailure keeps any previously recorded remote id so the
// next successful push updates the same shadow.
func (s *SyncService) recordPushFailure(ctx context.Context, pageID int64, msg string) {
	link, err := s.repo.GetSyncLink(ctx, pageID)
	if err != nil || link == nil {
		link = &domain.SyncLink{PageID: pageID}
	}
	link.Status = domain.SyncStatusError
	link.LastError = msg
	if err := s.repo.SaveSyncLink(ctx, link); err != nil {
		log.Printf("sync: failed to save link for page %d: %v", pageID, err)
	}
	s.logActivity(ctx, domain.ActivityPush, pageID, domain.ActivityError, msg)
}

// PushAsync queues a push off the request path.
func (s *SyncService) PushAsync(pageID int64) {
	if s.tasks == nil {
		return
	}
	s.tasks.Enqueue(func(ctx context.Context) {
		if _, err := s.Push(ctx, pageID); err != nil {
			log.Printf("sync: async push of page %d failed: %v", pageID, err)
		}
	})
}

// Receive handles an inbound push on the hub. Repeat deliveries of
// the same payload update the existing shadow instead of creating a
// duplicate, which is what makes the caller's at-least-once sends safe.
func (s *SyncService) Receive(ctx context.Context, payload *domain.SyncPayload) (*domain.SyncResponse, error) {
	if payload.SourceID == 0 || payload.SourceURL == "" {
		return &domain.SyncResponse{Success: false, Message: "missing source identity"}, nil
	}

	shadow, err := s.repo.GetShadow(ctx, payload.SourceID, payload.SourceURL)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	heroURL := payload.Meta["hero_image_url"]

	if shadow != nil {
		shadow.Title = payload.Title
		shadow.Attributes = payload.Meta
		shadow.HeroImageURL = heroURL
		shadow.ReceivedAt = &now
		shadow.UpdatedAt = now
		if err := s.repo.Update(ctx, shadow); err != nil {
			s.logActivity(ctx, domain.ActivityReceive, shadow.ID, domain.ActivityError, err.Error())
			return &domain.SyncResponse{Success: false, Message: err.Error()}, nil
		}
	} else {
		shadow = &domain.Page{
			Title:        payload.Title,
			Slug:         shadowSlug(payload),
			Status:       domain.PageStatusPublished,
			HeroImageURL: heroURL,
			Attributes:   payload.Meta,
			IsShadow:     true,
			SourceID:     payload.SourceID,
			SourceURL:    payload.SourceURL,
			ReceivedAt:   &now,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := s.repo.Create(ctx, shadow); err != nil {
			s.logActivity(ctx, domain.ActivityReceive, 0, domain.ActivityError, err.Error())
			return &domain.SyncResponse{Success: false, Message: err.Error()}, nil
		}
	}

	s.sideloadHero(shadow.ID, heroURL)

	s.logActivity(ctx, domain.ActivityReceive, shadow.ID, domain.ActivitySuccess,
		fmt.Sprintf("received %q from %s (source %d)", payload.Title, payload.SourceURL, payload.SourceID))
	return &domain.SyncResponse{Success: true, SyncedID: shadow.ID}, nil
}

// sideloadHero re-hosts the origin's hero image so the shadow keeps
// working if the origin goes away. Runs in the background; failure is
// non-fatal and the shadow keeps the remote URL.
func (s *SyncService) sideloadHero(pageID int64, remoteURL string) {
	if remoteURL == "" || s.sideloader == nil || s.tasks == nil {
		return
	}
	s.tasks.Enqueue(func(ctx context.Context) {
		localURL, err := s.sideloader.Sideload(ctx, remoteURL)
		if err != nil {
			log.Printf("sync: sideload for page %d failed, keeping remote URL: %v", pageID, err)
			return
		}
		page, err := s.repo.GetByID(ctx, pageID)
		if err != nil || page == nil {
			return
		}
		page.HeroImageURL = localURL
		page.UpdatedAt = time.Now()
		if err := s.repo.Update(ctx, page); err != nil {
			log.Printf("sync: failed to store sideloaded image for page %d: %v", pageID, err)
		}
	})
}

// Delete propagates an origin-side deletion to the hub, then drops
// the local sync link. Only pages with a recorded link ever pushed,
// so pages without one are done immediately.
func (s *SyncService) Delete(ctx context.Context, pageID int64) error {
	link, err := s.repo.GetSyncLink(ctx, pageID)
	if err != nil {
		return err
	}
	if link == nil || s.peer == nil {
		return nil
	}

	payload := &domain.DeletePayload{
		Action:    "delete",
		SourceID:  pageID,
		SourceURL: s.siteURL,
		RemoteID:  link.RemoteID,
	}

	resp, err := s.peer.Delete(ctx, payload)
	if err != nil || !resp.Success {
		msg := "delete rejected"
		if err != nil {
			msg = err.Error()
		} else if resp.Message != "" {
			msg = resp.Message
		}
		s.logActivity(ctx, domain.ActivityDelete, pageID, domain.ActivityError, msg)
		return nil // best effort: local deletion already happened
	}

	if err := s.repo.DeleteSyncLink(ctx, pageID); err != nil {
		log.Printf("sync: failed to drop link for page %d: %v", pageID, err)
	}
	s.logActivity(ctx, domain.ActivityDelete, pageID, domain.ActivitySuccess,
		fmt.Sprintf("deleted remote %d", link.RemoteID))
	return nil
}

// DeleteAsync queues a delete push off the request path.
func (s *SyncService) DeleteAsync(pageID int64) {
	if s.tasks == nil {
		return
	}
	s.tasks.Enqueue(func(ctx context.Context) {
		if err := s.Delete(ctx, pageID); err != nil {
			log.Printf("sync: async delete push of page %d failed: %v", pageID, err)
		}
	})
}

// ReceiveDelete handles a delete push on the hub. The claimed source
// identity must match what the shadow recorded at create time; the
// remote id alone is never enough. A missing shadow counts as success
// so repeated deletes stay idempotent.
func (s *SyncService) ReceiveDelete(ctx context.Context, payload *domain.DeletePayload) (*domain.SyncResponse, error) {
	if payload.Action != "delete" {
		return &domain.SyncResponse{Success: false, Message: "unsupported action"}, nil
	}

	shadow, err := s.repo.GetByID(ctx, payload.RemoteID)
	if err != nil {
		return nil, err
	}
	if shadow == nil {
		s.logActivity(ctx, domain.ActivityDeleteReceive, payload.RemoteID, domain.ActivitySuccess, "shadow already gone")
		return &domain.SyncResponse{Success: true}, nil
	}

	if !shadow.IsShadow || shadow.SourceID != payload.SourceID || shadow.SourceURL != payload.SourceURL {
		msg := fmt.Sprintf("source identity mismatch for remote %d", payload.RemoteID)
		s.logActivity(ctx, domain.ActivityDeleteReceive, payload.RemoteID, domain.ActivityError, msg)
		return &domain.SyncResponse{Success: false, Message: msg}, nil
	}

	if err := s.repo.Delete(ctx, shadow.ID); err != nil {
		s.logActivity(ctx, domain.ActivityDeleteReceive, shadow.ID, domain.ActivityError, err.Error())
		return &domain.SyncResponse{Success: false, Message: err.Error()}, nil
	}

	s.logActivity(ctx, domain.ActivityDeleteReceive, shadow.ID, domain.ActivitySuccess,
		fmt.Sprintf("deleted shadow for source %d@%s", payload.SourceID, payload.SourceURL))
	return &domain.SyncResponse{Success: true}, nil
}

// Register announces this spoke to the hub. One-shot and purely
// informational; the outcome is recorded in the options store.
func (s *SyncService) Register(ctx context.Context) (*domain.RegisterResponse, error) {
	if s.peer == nil {
		return &domain.RegisterResponse{Success: false, Message: "replication not configured"}, nil
	}

	resp, err := s.peer.Register(ctx, &domain.RegisterPayload{
		SiteURL:  s.siteURL,
		SiteName: s.siteName,
	})
	if err != nil {
		s.logActivity(ctx, domain.ActivityRegister, 0, domain.ActivityError, err.Error())
		return &domain.RegisterResponse{Success: false, Message: err.Error()}, nil
	}

	status := domain.ActivityError
	if resp.Success {
		status = domain.ActivitySuccess
		_ = s.repo.SetOption(ctx, "hub_registered_at", time.Now().UTC().Format(time.RFC3339))
	}
	s.logActivity(ctx, domain.ActivityRegister, 0, status, resp.Message)
	return resp, nil
}

// ReceiveRegister records a spoke on the hub. Re-registration updates
// the existing row.
func (s *SyncService) ReceiveRegister(ctx context.Context, payload *domain.RegisterPayload) (*domain.RegisterResponse, error) {
	if payload.SiteURL == "" {
		return &domain.RegisterResponse{Success: false, Message: "site_url is required"}, nil
	}

	partner := &domain.Partner{
		SiteURL:      payload.SiteURL,
		SiteName:     payload.SiteName,
		RegisteredAt: time.Now(),
	}
	if err := s.repo.UpsertPartner(ctx, partner); err != nil {
		s.logActivity(ctx, domain.ActivityRegister, 0, domain.ActivityError, err.Error())
		return &domain.RegisterResponse{Success: false, Message: err.Error()}, nil
	}

	s.logActivity(ctx, domain.ActivityRegister, 0, domain.ActivitySuccess,
		fmt.Sprintf("registered partner %s", payload.SiteURL))
	return &domain.RegisterResponse{Success: true, Message: "registered"}, nil
}

func (s *SyncService) logActivity(ctx context.Context, direction string, pageID int64, status, message string) {
	entry := &domain.ActivityEntry{
		CreatedAt: time.Now(),
		Direction: direction,
		PageID:    pageID,
		Status:    status,
		Message:   message,
	}
	if err := s.repo.AppendActivity(ctx, entry); err != nil {
		log.Printf("sync: failed to append activity entry: %v", err)
	}
}

// shadowSlug builds a slug that cannot collide across partners
// pushing pages with the same local slug. The origin hash keeps two
// partners' page 42 apart.
func shadowSlug(payload *domain.SyncPayload) string {
	origin := sha256.Sum256([]byte(payload.SourceURL))
	return fmt.Sprintf("shadow-%x-%d-%s", origin[:4], payload.SourceID, payload.Slug)
}

var _ ports.SyncService = (*SyncService)(nil)
