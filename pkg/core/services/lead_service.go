package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/ports"
)

// LeadService captures form submissions. The submission write is the
// primary action; the analytics event and the webhook delivery are
// best-effort side effects that never fail or roll it back.
type LeadService struct {
	repo      ports.PageRepository
	analytics ports.AnalyticsService
	delivery  *DeliveryService
	siteURL   string
	siteName  string
}

func NewLeadService(repo ports.PageRepository, analytics ports.AnalyticsService, delivery *DeliveryService, siteURL, siteName string) *LeadService {
	return &LeadService{
		repo:      repo,
		analytics: analytics,
		delivery:  delivery,
		siteURL:   siteURL,
		siteName:  siteName,
	}
}

func (s *LeadService) SubmitLead(ctx context.Context, pageID int64, firstName, lastName, email, phone string, responses map[string]string, ip, userAgent string) (*domain.Submission, error) {
	if email == "" && phone == "" {
		return nil, errors.New("email or phone is required")
	}

	page, err := s.repo.GetByID(ctx, pageID)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.New("page not found")
	}

	sub := &domain.Submission{
		UUID:      uuid.NewString(),
		PageID:    pageID,
		FirstName: firstName,
		LastName:  lastName,
		Email:     email,
		Phone:     phone,
		Responses: responses,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateSubmission(ctx, sub); err != nil {
		return nil, err
	}

	// Submissions are exempt from dedup: every one is recorded.
	if s.analytics != nil {
		if _, err := s.analytics.Record(ctx, pageID, domain.EventSubmission, ip, userAgent); err != nil {
			log.Printf("lead: failed to record submission event for page %d: %v", pageID, err)
		}
	}

	if s.delivery != nil {
		pageURL := s.siteURL + "/p/" + page.Slug
		event := domain.NewLeadEvent(s.siteName, pageURL, page, sub)
		s.delivery.DeliverAsync(event)
	}

	return sub, nil
}

var _ ports.LeadService = (*LeadService)(nil)
