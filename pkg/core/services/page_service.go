package services

import (
	"context"
	"errors"
	"time"

	"github.com/openlistings/leadsync/pkg/core/domain"
	"github.com/openlistings/leadsync/pkg/ports"
)

// PageService is the authoring-side page logic. Mutations to
// published pages trigger a replication push; deletions trigger a
// delete push. Both run in the background so a failed or slow hub
// never blocks the author's save.
type PageService struct {
	repo ports.PageRepository
	sync *SyncService
}

func NewPageService(repo ports.PageRepository, sync *SyncService) *PageService {
	return &PageService{repo: repo, sync: sync}
}

func (s *PageService) CreatePage(ctx context.Context, title, slug, heroImageURL string, attributes map[string]string) (*domain.Page, error) {
	if title == "" {
		return nil, errors.New("title is required")
	}
	if slug == "" {
		return nil, errors.New("slug is required")
	}

	existing, _ := s.repo.GetBySlug(ctx, slug)
	if existing != nil {
		return nil, errors.New("slug already exists")
	}

	page := &domain.Page{
		Title:        title,
		Slug:         slug,
		Status:       domain.PageStatusDraft,
		HeroImageURL: heroImageURL,
		Attributes:   attributes,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	if err := s.repo.Create(ctx, page); err != nil {
		return nil, err
	}
	return page, nil
}

func (s *PageService) GetPage(ctx context.Context, id int64) (*domain.Page, error) {
	page, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.New("page not found")
	}
	return page, nil
}

func (s *PageService) GetPageBySlug(ctx context.Context, slug string) (*domain.Page, error) {
	page, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, errors.New("page not found")
	}
	return page, nil
}

func (s *PageService) UpdatePage(ctx context.Context, id int64, title, heroImageURL string, attributes map[string]string) (*domain.Page, error) {
	page, err := s.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	if page.IsShadow {
		return nil, errors.New("shadow copies are updated by replication only")
	}

	if title != "" {
		page.Title = title
	}
	if heroImageURL != "" {
		page.HeroImageURL = heroImageURL
	}
	if attributes != nil {
		page.Attributes = attributes
	}
	page.UpdatedAt = time.Now()

	if err := s.repo.Update(ctx, page); err != nil {
		return nil, err
	}

	// Re-push the full current state; the hub updates in place.
	if page.Status == domain.PageStatusPublished && s.sync != nil {
		s.sync.PushAsync(page.ID)
	}
	return page, nil
}

func (s *PageService) PublishPage(ctx context.Context, id int64) (*domain.Page, error) {
	page, err := s.GetPage(ctx, id)
	if err != nil {
		return nil, err
	}
	if page.IsShadow {
		return nil, errors.New("shadow copies cannot be published")
	}

	page.Status = domain.PageStatusPublished
	page.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, page); err != nil {
		return nil, err
	}

	if s.sync != nil {
		s.sync.PushAsync(page.ID)
	}
	return page, nil
}

func (s *PageService) DeletePage(ctx context.Context, id int64) error {
	page, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if page == nil {
		return nil // already gone
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	if !page.IsShadow && s.sync != nil {
		s.sync.DeleteAsync(id)
	}
	return nil
}

func (s *PageService) ListPages(ctx context.Context, page, limit int, search string) ([]domain.Page, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	offset := (page - 1) * limit

	filters := map[string]interface{}{
		"search": search,
	}

	pages, err := s.repo.List(ctx, limit, offset, filters)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	return pages, count, nil
}

var _ ports.PageService = (*PageService)(nil)
