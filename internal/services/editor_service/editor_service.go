package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/logger/sl"
	"illust_nest/internal/lib/validate"
	"illust_nest/internal/transport/http/dto"
)

type WorkAPI interface {
	GetWork(ctx context.Context, id uint) (*models.Work, error)
	UpdateWork(ctx context.Context, id uint, req dto.UpdateWorkRequest) (*models.Work, error)
	DeleteWork(ctx context.Context, id uint) error
	BatchDeleteWorks(ctx context.Context, ids []uint) (int64, error)
	BatchUpdatePublic(ctx context.Context, ids []uint, isPublic bool) error
	DeleteImage(ctx context.Context, workID, imageID uint) error
	UpdateImageOrder(ctx context.Context, workID uint, imageIDs []uint) error
	UpdateImageAIMetadata(ctx context.Context, workID, imageID uint, meta *models.AIMetadata) error
	ImageEXIF(ctx context.Context, workID, imageID uint) (*models.ImageEXIFInfo, error)
	CollectionsByWork(ctx context.Context, workID uint) ([]models.Collection, error)
	SyncWorkCollections(ctx context.Context, workID uint, collectionIDs []uint) error
}

// WorkDraft is the editable part of a work, including which collections it
// belongs to.
type WorkDraft struct {
	ID            uint
	Title         string `validate:"required,max=200"`
	Description   string
	Rating        int `validate:"min=0,max=5"`
	IsPublic      bool
	TagIDs        []uint
	CollectionIDs []uint
}

func WorkDraftOf(w models.Work, collections []models.Collection) WorkDraft {
	ids := make([]uint, 0, len(collections))
	for _, c := range collections {
		ids = append(ids, c.ID)
	}

	return WorkDraft{
		ID:            w.ID,
		Title:         w.Title,
		Description:   w.Description,
		Rating:        w.Rating,
		IsPublic:      w.IsPublic,
		TagIDs:        w.TagIDs(),
		CollectionIDs: ids,
	}
}

type EditorService struct {
	log   *slog.Logger
	works WorkAPI
}

func NewEditorService(log *slog.Logger, works WorkAPI) *EditorService {
	return &EditorService{
		log:   log,
		works: works,
	}
}

// EditWork loads a work and its collection membership into a form.
func (s *EditorService) EditWork(ctx context.Context, id uint) (*Form[WorkDraft], error) {
	const op = "editor_service.EditWork"

	log := s.log.With(
		slog.String("op", op),
		slog.Any("work_id", id),
	)

	work, err := s.works.GetWork(ctx, id)
	if err != nil {
		log.Error("failed to load work", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	collections, err := s.works.CollectionsByWork(ctx, id)
	if err != nil {
		log.Error("failed to load work collections", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return NewForm(WorkDraftOf(*work, collections), s.pushWork), nil
}

// pushWork sends the metadata and then the collection membership when it changed.
func (s *EditorService) pushWork(ctx context.Context, d WorkDraft) (WorkDraft, error) {
	tagIDs := d.TagIDs
	if tagIDs == nil {
		tagIDs = []uint{}
	}

	work, err := s.works.UpdateWork(ctx, d.ID, dto.UpdateWorkRequest{
		Title:       d.Title,
		Description: d.Description,
		Rating:      d.Rating,
		IsPublic:    d.IsPublic,
		TagIDs:      tagIDs,
	})
	if err != nil {
		return d, err
	}

	if d.CollectionIDs != nil {
		if err := s.works.SyncWorkCollections(ctx, d.ID, d.CollectionIDs); err != nil {
			return d, err
		}
	}

	stored := WorkDraftOf(*work, nil)
	stored.CollectionIDs = d.CollectionIDs

	s.log.Info("work saved", slog.Any("work_id", d.ID))

	return stored, nil
}

func (s *EditorService) DeleteWork(ctx context.Context, id uint) error {
	const op = "editor_service.DeleteWork"

	if err := s.works.DeleteWork(ctx, id); err != nil {
		s.log.Error("failed to delete work", slog.String("op", op), slog.Any("work_id", id), sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// BatchDelete deletes every selected work in one request.
func (s *EditorService) BatchDelete(ctx context.Context, ids []uint) (int64, error) {
	const op = "editor_service.BatchDelete"

	log := s.log.With(
		slog.String("op", op),
		slog.Int("count", len(ids)),
	)

	if len(ids) == 0 {
		return 0, fmt.Errorf("%s: %w", op, validate.Fail("nothing selected"))
	}

	deleted, err := s.works.BatchDeleteWorks(ctx, ids)
	if err != nil {
		log.Error("batch delete failed", sl.Err(err))

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("works deleted", slog.Int64("deleted", deleted))

	return deleted, nil
}

// BatchSetPublic sets the visibility of every selected work in one request.
func (s *EditorService) BatchSetPublic(ctx context.Context, ids []uint, public bool) error {
	const op = "editor_service.BatchSetPublic"

	if len(ids) == 0 {
		return fmt.Errorf("%s: %w", op, validate.Fail("nothing selected"))
	}

	if err := s.works.BatchUpdatePublic(ctx, ids, public); err != nil {
		s.log.Error("batch visibility update failed", slog.String("op", op), sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *EditorService) DeleteImage(ctx context.Context, workID, imageID uint) error {
	const op = "editor_service.DeleteImage"

	if err := s.works.DeleteImage(ctx, workID, imageID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ReorderImages sets the image order of a work. order must list every image
// of the work exactly once.
func (s *EditorService) ReorderImages(ctx context.Context, work models.Work, order []uint) error {
	const op = "editor_service.ReorderImages"

	current := work.ImageIDs()
	sortedCurrent := slices.Clone(current)
	sortedOrder := slices.Clone(order)
	slices.Sort(sortedCurrent)
	slices.Sort(sortedOrder)

	if !slices.Equal(sortedCurrent, sortedOrder) {
		return fmt.Errorf("%s: %w", op, validate.Fail("order must list every image of work %d once", work.ID))
	}

	if err := s.works.UpdateImageOrder(ctx, work.ID, order); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *EditorService) SetImageAIMetadata(ctx context.Context, workID, imageID uint, meta *models.AIMetadata) error {
	const op = "editor_service.SetImageAIMetadata"

	if err := s.works.UpdateImageAIMetadata(ctx, workID, imageID, meta); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *EditorService) ImageEXIF(ctx context.Context, workID, imageID uint) (*models.ImageEXIFInfo, error) {
	const op = "editor_service.ImageEXIF"

	info, err := s.works.ImageEXIF(ctx, workID, imageID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return info, nil
}
