package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/logger/sl"
	"illust_nest/internal/lib/validate"
	editor "illust_nest/internal/services/editor_service"
	"illust_nest/internal/transport/http/dto"
)

var (
	ErrCollectionNotFound = errors.New("collection not found")
	ErrCycle              = errors.New("collection cannot be moved below itself")
)

type CollectionAPI interface {
	CollectionTree(ctx context.Context) (models.CollectionTree, error)
	GetCollection(ctx context.Context, id uint) (*models.Collection, error)
	CollectionWorks(ctx context.Context, id uint, params dto.WorkListParams) (models.Page[models.Work], error)
	CreateCollection(ctx context.Context, req dto.CreateCollectionRequest) (*models.Collection, error)
	UpdateCollection(ctx context.Context, id uint, req dto.UpdateCollectionRequest) (*models.Collection, error)
	DeleteCollection(ctx context.Context, id uint) error
	UpdateCollectionOrder(ctx context.Context, ids []uint) error
	AddCollectionWorks(ctx context.Context, id uint, workIDs []uint) error
	RemoveCollectionWorks(ctx context.Context, id uint, workIDs []uint) error
	UpdateCollectionWorkOrder(ctx context.Context, id uint, workIDs []uint) error
}

// GalleryService manages the collection tree. It keeps the last fetched tree
// and patches it locally after deletes.
type GalleryService struct {
	log *slog.Logger
	api CollectionAPI

	mu   sync.Mutex
	tree models.CollectionTree
}

func NewGalleryService(log *slog.Logger, api CollectionAPI) *GalleryService {
	return &GalleryService{
		log: log,
		api: api,
	}
}

// Refresh refetches the whole tree.
func (s *GalleryService) Refresh(ctx context.Context) (models.CollectionTree, error) {
	const op = "service.GalleryService.Refresh"

	tree, err := s.api.CollectionTree(ctx)
	if err != nil {
		s.log.Error("failed to load collection tree", slog.String("op", op), sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	s.tree = tree
	s.mu.Unlock()

	return tree, nil
}

// Tree returns the cached tree, fetching it on first use.
func (s *GalleryService) Tree(ctx context.Context) (models.CollectionTree, error) {
	s.mu.Lock()
	tree := s.tree
	s.mu.Unlock()

	if tree != nil {
		return tree, nil
	}

	return s.Refresh(ctx)
}

func (s *GalleryService) Get(ctx context.Context, id uint) (*models.Collection, error) {
	const op = "service.GalleryService.Get"

	c, err := s.api.GetCollection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return c, nil
}

// Works returns a page fetcher over the works of one collection, in the
// collection's own order.
func (s *GalleryService) Works(id uint) func(ctx context.Context, params dto.WorkListParams) (models.Page[models.Work], error) {
	return func(ctx context.Context, params dto.WorkListParams) (models.Page[models.Work], error) {
		return s.api.CollectionWorks(ctx, id, params)
	}
}

// Create adds a collection under parent, or at the root when parent is nil.
func (s *GalleryService) Create(ctx context.Context, req dto.CreateCollectionRequest) (*models.Collection, error) {
	const op = "service.GalleryService.Create"

	log := s.log.With(
		slog.String("op", op),
		slog.String("name", req.Name),
	)

	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.ParentID != nil {
		tree, err := s.Tree(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if tree.Find(*req.ParentID) == nil {
			return nil, fmt.Errorf("%s: parent %d: %w", op, *req.ParentID, ErrCollectionNotFound)
		}
	}

	c, err := s.api.CreateCollection(ctx, req)
	if err != nil {
		log.Error("failed to create collection", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("collection created", slog.Any("id", c.ID))

	if _, err := s.Refresh(ctx); err != nil {
		log.Warn("tree refresh after create failed", sl.Err(err))
	}

	return c, nil
}

// Update changes name, description and parent. A parent that is the
// collection itself or one of its descendants is rejected.
func (s *GalleryService) Update(ctx context.Context, id uint, req dto.UpdateCollectionRequest) (*models.Collection, error) {
	const op = "service.GalleryService.Update"

	log := s.log.With(
		slog.String("op", op),
		slog.Any("id", id),
	)

	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := checkParent(tree, id, req.ParentID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	c, err := s.api.UpdateCollection(ctx, id, req)
	if err != nil {
		log.Error("failed to update collection", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.Refresh(ctx); err != nil {
		log.Warn("tree refresh after update failed", sl.Err(err))
	}

	return c, nil
}

// Move reparents a collection and keeps its name and description.
func (s *GalleryService) Move(ctx context.Context, id uint, parent *uint) (*models.Collection, error) {
	const op = "service.GalleryService.Move"

	tree, err := s.Tree(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	node := tree.Find(id)
	if node == nil {
		return nil, fmt.Errorf("%s: %d: %w", op, id, ErrCollectionNotFound)
	}

	return s.Update(ctx, id, dto.UpdateCollectionRequest{
		Name:        node.Name,
		Description: node.Description,
		ParentID:    parent,
	})
}

func checkParent(tree models.CollectionTree, id uint, parent *uint) error {
	if tree.Find(id) == nil {
		return fmt.Errorf("%d: %w", id, ErrCollectionNotFound)
	}
	if parent == nil {
		return nil
	}
	if *parent == id || tree.IsDescendant(id, *parent) {
		return ErrCycle
	}
	if tree.Find(*parent) == nil {
		return fmt.Errorf("parent %d: %w", *parent, ErrCollectionNotFound)
	}
	return nil
}

// Delete removes a collection and its sub-collections. Member works are
// detached by the server and never deleted.
func (s *GalleryService) Delete(ctx context.Context, id uint) error {
	const op = "service.GalleryService.Delete"

	log := s.log.With(
		slog.String("op", op),
		slog.Any("id", id),
	)

	if err := s.api.DeleteCollection(ctx, id); err != nil {
		log.Error("failed to delete collection", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	if s.tree != nil {
		s.tree, _ = s.tree.Remove(id)
	}
	s.mu.Unlock()

	log.Info("collection deleted")

	return nil
}

// ReorderSiblings sets the order of the children of parent (nil for the
// roots). ids must list exactly those children.
func (s *GalleryService) ReorderSiblings(ctx context.Context, parent *uint, ids []uint) error {
	const op = "service.GalleryService.ReorderSiblings"

	tree, err := s.Tree(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	siblings := tree.Siblings(parent)
	want := slices.Clone(siblings)
	got := slices.Clone(ids)
	slices.Sort(want)
	slices.Sort(got)
	if !slices.Equal(want, got) {
		return fmt.Errorf("%s: %w", op, validate.Fail("order must list every sibling once"))
	}

	if err := s.api.UpdateCollectionOrder(ctx, ids); err != nil {
		s.log.Error("failed to reorder collections", slog.String("op", op), sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := s.Refresh(ctx); err != nil {
		s.log.Warn("tree refresh after reorder failed", slog.String("op", op), sl.Err(err))
	}

	return nil
}

func (s *GalleryService) AddWorks(ctx context.Context, id uint, workIDs []uint) error {
	const op = "service.GalleryService.AddWorks"

	if len(workIDs) == 0 {
		return fmt.Errorf("%s: %w", op, validate.Fail("no works given"))
	}

	if err := s.api.AddCollectionWorks(ctx, id, workIDs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *GalleryService) RemoveWorks(ctx context.Context, id uint, workIDs []uint) error {
	const op = "service.GalleryService.RemoveWorks"

	if len(workIDs) == 0 {
		return fmt.Errorf("%s: %w", op, validate.Fail("no works given"))
	}

	if err := s.api.RemoveCollectionWorks(ctx, id, workIDs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *GalleryService) ReorderWorks(ctx context.Context, id uint, workIDs []uint) error {
	const op = "service.GalleryService.ReorderWorks"

	if len(workIDs) == 0 {
		return fmt.Errorf("%s: %w", op, validate.Fail("no works given"))
	}

	if err := s.api.UpdateCollectionWorkOrder(ctx, id, workIDs); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CollectionDraft is the editable part of a collection.
type CollectionDraft struct {
	ID          uint
	Name        string `validate:"required,max=100"`
	Description string
	ParentID    *uint
}

// EditCollection loads a collection into a form. Saving goes through Update,
// so a parent that would create a cycle is rejected before any request.
func (s *GalleryService) EditCollection(ctx context.Context, id uint) (*editor.Form[CollectionDraft], error) {
	const op = "service.GalleryService.EditCollection"

	c, err := s.api.GetCollection(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	draft := CollectionDraft{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		ParentID:    c.ParentID,
	}

	return editor.NewForm(draft, func(ctx context.Context, d CollectionDraft) (CollectionDraft, error) {
		d.Name = strings.TrimSpace(d.Name)

		stored, err := s.Update(ctx, d.ID, dto.UpdateCollectionRequest{
			Name:        d.Name,
			Description: d.Description,
			ParentID:    d.ParentID,
		})
		if err != nil {
			return d, err
		}

		return CollectionDraft{
			ID:          stored.ID,
			Name:        stored.Name,
			Description: stored.Description,
			ParentID:    stored.ParentID,
		}, nil
	}), nil
}
