package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/logger/sl"
	"illust_nest/internal/lib/validate"
	editor "illust_nest/internal/services/editor_service"
	"illust_nest/internal/transport/http/dto"
)

var ErrSystemTag = errors.New("system tags cannot be changed")

const maxTagName = 50

type TagAPI interface {
	ListTags(ctx context.Context, params dto.TagListParams) ([]models.Tag, error)
	CreateTag(ctx context.Context, req dto.TagRequest) (*models.Tag, error)
	UpdateTag(ctx context.Context, id uint, req dto.TagRequest) (*models.Tag, error)
	DeleteTag(ctx context.Context, id uint) error
	BatchCreateTags(ctx context.Context, req dto.BatchCreateTagsRequest) (*models.BatchTagsResult, error)
}

type TagService struct {
	log *slog.Logger
	api TagAPI
}

func NewTagService(log *slog.Logger, api TagAPI) *TagService {
	return &TagService{log: log, api: api}
}

func (s *TagService) List(ctx context.Context, keyword string, withCounts bool) ([]models.Tag, error) {
	const op = "tag_service.List"

	tags, err := s.api.ListTags(ctx, dto.TagListParams{Keyword: strings.TrimSpace(keyword), IncludeCount: withCounts})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return tags, nil
}

func (s *TagService) Create(ctx context.Context, name string) (*models.Tag, error) {
	const op = "tag_service.Create"

	log := s.log.With(
		slog.String("op", op),
		slog.String("name", name),
	)

	req := dto.TagRequest{Name: strings.TrimSpace(name)}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	tag, err := s.api.CreateTag(ctx, req)
	if err != nil {
		log.Error("failed to create tag", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tag created", slog.Any("id", tag.ID))

	return tag, nil
}

// Rename changes the name of a user tag.
func (s *TagService) Rename(ctx context.Context, tag models.Tag, name string) (*models.Tag, error) {
	const op = "tag_service.Rename"

	log := s.log.With(
		slog.String("op", op),
		slog.Any("id", tag.ID),
	)

	if tag.IsSystem {
		return nil, fmt.Errorf("%s: %w", op, ErrSystemTag)
	}

	req := dto.TagRequest{Name: strings.TrimSpace(name)}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := s.api.UpdateTag(ctx, tag.ID, req)
	if err != nil {
		log.Error("failed to rename tag", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return updated, nil
}

func (s *TagService) Delete(ctx context.Context, tag models.Tag) error {
	const op = "tag_service.Delete"

	if tag.IsSystem {
		return fmt.Errorf("%s: %w", op, ErrSystemTag)
	}

	if err := s.api.DeleteTag(ctx, tag.ID); err != nil {
		s.log.Error("failed to delete tag", slog.String("op", op), slog.Any("id", tag.ID), sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// BatchCreate creates every tag named in text. Names are separated by commas
// or line breaks; blanks and repeats are dropped. The server reports names
// that already existed as skipped.
func (s *TagService) BatchCreate(ctx context.Context, text string) (*models.BatchTagsResult, error) {
	const op = "tag_service.BatchCreate"

	names := SplitNames(text)
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", op, validate.Fail("no tag names given"))
	}
	for _, n := range names {
		if utf8.RuneCountInString(n) > maxTagName {
			return nil, fmt.Errorf("%s: %w", op, validate.Fail("tag %q is longer than %d characters", n, maxTagName))
		}
	}

	log := s.log.With(
		slog.String("op", op),
		slog.Int("names", len(names)),
	)

	res, err := s.api.BatchCreateTags(ctx, dto.BatchCreateTagsRequest{Names: names})
	if err != nil {
		log.Error("batch create failed", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("tags created",
		slog.Int("created", len(res.Tags)),
		slog.Int("skipped", len(res.Skipped)),
	)

	return res, nil
}

// SplitNames turns free text into a list of distinct tag names in order.
func SplitNames(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		switch r {
		case ',', '，', '\n', '\r':
			return true
		}
		return false
	})

	seen := make(map[string]struct{}, len(fields))
	names := make([]string, 0, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(f)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}

	return names
}

type TagDraft struct {
	ID   uint
	Name string `validate:"required,max=50"`
}

// EditTag wraps a tag in a form that renames it on save.
func (s *TagService) EditTag(tag models.Tag) (*editor.Form[TagDraft], error) {
	const op = "tag_service.EditTag"

	if tag.IsSystem {
		return nil, fmt.Errorf("%s: %w", op, ErrSystemTag)
	}

	return editor.NewForm(TagDraft{ID: tag.ID, Name: tag.Name}, func(ctx context.Context, d TagDraft) (TagDraft, error) {
		stored, err := s.Rename(ctx, tag, d.Name)
		if err != nil {
			return d, err
		}
		tag = *stored

		return TagDraft{ID: stored.ID, Name: stored.Name}, nil
	}), nil
}
