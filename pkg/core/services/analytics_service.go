package services

import (
	"context"
	"errors"
	"time"

	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/ports"
)

// AnalyticsService records page events, suppressing repeat view/scan
// events from the same visitor within the dedup window. Submission
// events are real signal and never suppressed.
type AnalyticsService struct {
	repo ports.PageRepository
	now  func() time.Time
}

func NewAnalyticsService(repo ports.PageRepository) *AnalyticsService {
	return &AnalyticsService{repo: repo, now: time.Now}
}

// Record returns recorded=false when the event was suppressed as a
// duplicate. The check and the insert are separate statements, so two
// truly concurrent requests from one visitor can both slip through;
// roughly one duplicate per window is accepted for analytics.
func (s *AnalyticsService) Record(ctx context.Context, pageID int64, eventType, ip, userAgent string) (bool, error) {
	switch eventType {
	case domain.EventView, domain.EventScan, domain.EventSubmission:
	default:
		return false, errors.New("unknown event type")
	}

	fingerprint := domain.Fingerprint(ip, userAgent)
	now := s.now()

	if eventType != domain.EventSubmission {
		since := now.Add(-domain.DedupWindow)
		dup, err := s.repo.HasRecentEvent(ctx, pageID, eventType, fingerprint, since)
		if err != nil {
			return false, err
		}
		if dup {
			return false, nil
		}
	}

	event := &domain.PageEvent{
		PageID:      pageID,
		EventType:   eventType,
		Fingerprint: fingerprint,
		CreatedAt:   now,
	}
	if err := s.repo.RecordEvent(ctx, event); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AnalyticsService) PageStats(ctx context.Context, pageID int64) (*domain.PageStats, error) {
	return s.repo.GetPageStats(ctx, pageID)
}

var _ ports.AnalyticsService = (*AnalyticsService)(nil)
