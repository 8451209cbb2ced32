package services

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/ports"
)

// DeliveryService sends lead events to the configured webhook and
// keeps a persisted retry queue for failures. Delivery is
// at-least-once: the endpoint must tolerate a duplicate if a success
// response was lost before we recorded it. Retries are bounded at
// domain.MaxDeliveryAttempts; exhausted items stay in the queue for
// manual inspection and are only removed by an administrative clear.
type DeliveryService struct {
	repo   ports.PageRepository
	sender ports.WebhookSender
	tasks  *TaskRunner

	// One sweep at a time per process. Overlapping cron triggers from
	// elsewhere remain safe because sends are idempotent downstream.
	sweepMu sync.Mutex
}

func NewDeliveryService(repo ports.PageRepository, sender ports.WebhookSender, tasks *TaskRunner) *DeliveryService {
	return &DeliveryService{repo: repo, sender: sender, tasks: tasks}
}

// Deliver attempts one synchronous send and enqueues the payload for
// retry on failure. It never returns an error: delivery is a
// best-effort side effect of an already-committed submission.
func (s *DeliveryService) Deliver(ctx context.Context, event *domain.LeadEvent) {
	if s.sender == nil {
		return // no endpoint configured
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("delivery: failed to encode lead event: %v", err)
		return
	}

	eventID := uuid.NewString()
	status, err := s.sender.Send(ctx, payload)
	if err == nil {
		s.logDelivery(ctx, event.Page.ID, domain.ActivitySuccess,
			"delivered lead "+eventID+" ("+status+")")
		return
	}

	now := time.Now()
	attempt := &domain.DeliveryAttempt{
		UUID:          eventID,
		Payload:       payload,
		TargetEventID: eventID,
		AttemptCount:  1,
		FirstFailedAt: now,
		LastAttemptAt: now,
		LastResponse:  errString(status, err),
	}
	if qerr := s.repo.EnqueueDelivery(ctx, attempt); qerr != nil {
		log.Printf("delivery: failed to enqueue retry for %s: %v", eventID, qerr)
	}
	s.logDelivery(ctx, event.Page.ID, domain.ActivityError,
		"delivery of lead "+eventID+" failed, queued for retry: "+attempt.LastResponse)
}

// DeliverAsync queues the initial send off the request path.
func (s *DeliveryService) DeliverAsync(event *domain.LeadEvent) {
	if s.tasks == nil {
		s.Deliver(context.Background(), event)
		return
	}
	s.tasks.Enqueue(func(ctx context.Context) {
		s.Deliver(ctx, event)
	})
}

// RetrySweep re-attempts every queued delivery still inside the retry
// budget. Exhausted attempts are skipped, not touched, so they remain
// distinguishable from successes.
func (s *DeliveryService) RetrySweep(ctx context.Context) (*domain.SweepResult, error) {
	s.sweepMu.Lock()
	defer s.sweepMu.Unlock()

	result := &domain.SweepResult{}
	if s.sender == nil {
		return result, nil
	}

	attempts, err := s.repo.ListDeliveries(ctx)
	if err != nil {
		return nil, err
	}

	for i := range attempts {
		attempt := &attempts[i]
		if attempt.Exhausted() {
			continue
		}

		result.Retried++
		status, err := s.sender.Send(ctx, attempt.Payload)
		if err == nil {
			if rerr := s.repo.RemoveDelivery(ctx, attempt.ID); rerr != nil {
				log.Printf("delivery: failed to remove delivered attempt %s: %v", attempt.UUID, rerr)
				continue
			}
			result.Succeeded++
			s.logDelivery(ctx, 0, domain.ActivitySuccess,
				"retry delivered lead "+attempt.UUID+" ("+status+")")
			continue
		}

		attempt.AttemptCount++
		attempt.LastAttemptAt = time.Now()
		attempt.LastResponse = errString(status, err)
		if uerr := s.repo.UpdateDelivery(ctx, attempt); uerr != nil {
			log.Printf("delivery: failed to update attempt %s: %v", attempt.UUID, uerr)
		}
		if attempt.Exhausted() {
			s.logDelivery(ctx, 0, domain.ActivityError,
				"lead "+attempt.UUID+" exhausted retry budget, left queued")
		}
	}

	return result, nil
}

// Queue exposes the retry queue for admin inspection.
func (s *DeliveryService) Queue(ctx context.Context) ([]domain.DeliveryAttempt, error) {
	return s.repo.ListDeliveries(ctx)
}

// ClearQueue is the administrative wipe, including exhausted items.
func (s *DeliveryService) ClearQueue(ctx context.Context) error {
	return s.repo.ClearDeliveries(ctx)
}

func (s *DeliveryService) logDelivery(ctx context.Context, pageID int64, status, message string) {
	entry := &domain.ActivityEntry{
		CreatedAt: time.Now(),
		Direction: domain.ActivityDeliver,
		PageID:    pageID,
		Status:    status,
		Message:   message,
	}
	if err := s.repo.AppendActivity(ctx, entry); err != nil {
		log.Printf("delivery: failed to append activity entry: %v", err)
	}
}

func errString(status string, err error) string {
	if status != "" {
		return status + ": " + err.Error()
	}
	return err.Error()
}

var _ ports.DeliveryService = (*DeliveryService)(nil)
