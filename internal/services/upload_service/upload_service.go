package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/logger/sl"
	"illust_nest/internal/lib/validate"
	"illust_nest/internal/metrics"
	"illust_nest/internal/transport/http/dto"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

var (
	ErrBusy       = errors.New("another operation is in progress")
	ErrCancelled  = errors.New("save cancelled")
	ErrNoSuchItem = errors.New("no such upload item")
)

// hashWorkers bounds how many files are read and hashed at once.
const hashWorkers = 4

type State int

const (
	StateIdle State = iota
	StateHashing
	StateReady
	StateCheckingDuplicates
	StateAwaitingConfirmation
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateHashing:
		return "hashing"
	case StateReady:
		return "ready"
	case StateCheckingDuplicates:
		return "checking_duplicates"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateCommitting:
		return "committing"
	default:
		return "idle"
	}
}

type WorkAPI interface {
	CheckDuplicateImages(ctx context.Context, req dto.CheckDuplicatesRequest) ([]models.DuplicateImageInfo, error)
	CreateWork(ctx context.Context, in dto.CreateWorkInput, files []dto.UploadFile) (*models.Work, error)
	UpdateWork(ctx context.Context, id uint, req dto.UpdateWorkRequest) (*models.Work, error)
	UpdateImageOrder(ctx context.Context, workID uint, imageIDs []uint) error
	AddImages(ctx context.Context, workID uint, files []dto.UploadFile) ([]models.Image, error)
}

// Previews mints displayable handles for picked files. The media handle
// registry satisfies it.
type Previews interface {
	Mint(data []byte, contentType string) string
	Release(id string)
}

// DuplicateReport lists the pending hashes that already exist on the server
// and the works holding them.
type DuplicateReport struct {
	Hashes  []string
	WorkIDs []uint
	Matches []models.DuplicateImageInfo
}

// Confirmer decides whether a save goes ahead despite duplicates.
type Confirmer interface {
	ConfirmDuplicates(ctx context.Context, report DuplicateReport) (bool, error)
}

type ConfirmFunc func(ctx context.Context, report DuplicateReport) (bool, error)

func (f ConfirmFunc) ConfirmDuplicates(ctx context.Context, report DuplicateReport) (bool, error) {
	return f(ctx, report)
}

// FileSource is a file picked for upload. Open is called once for hashing and
// again when the file is sent.
type FileSource struct {
	Name       string
	MimeType   string
	Open       func() (io.ReadCloser, error)
	AIMetadata *models.AIMetadata
}

// PathSource picks a file from disk.
func PathSource(path string) FileSource {
	return FileSource{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

// WorkForm holds the editable metadata of the work being saved.
type WorkForm struct {
	Title       string `validate:"required,max=200"`
	Description string
	Rating      int `validate:"min=0,max=5"`
	IsPublic    bool
	TagIDs      []uint
}

// UploadService is one edit session of a work: its form, the images it
// already has and the files waiting to be uploaded.
type UploadService struct {
	log       *slog.Logger
	api       WorkAPI
	previews  Previews
	confirmer Confirmer

	mu       sync.Mutex
	state    State
	workID   uint // 0 while creating a new work
	form     WorkForm
	existing []models.Image
	items    []models.UploadItem
	sources  map[uuid.UUID]FileSource
}

func NewUploadService(log *slog.Logger, api WorkAPI, previews Previews, confirmer Confirmer) *UploadService {
	return &UploadService{
		log:       log,
		api:       api,
		previews:  previews,
		confirmer: confirmer,
		sources:   make(map[uuid.UUID]FileSource),
	}
}

// EditWork loads an existing work into the session.
func (s *UploadService) EditWork(work models.Work) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return ErrBusy
	}

	s.workID = work.ID
	s.form = WorkForm{
		Title:       work.Title,
		Description: work.Description,
		Rating:      work.Rating,
		IsPublic:    work.IsPublic,
		TagIDs:      work.TagIDs(),
	}
	s.existing = append([]models.Image(nil), work.Images...)

	return nil
}

func (s *UploadService) SetForm(form WorkForm) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.form = form
}

func (s *UploadService) Form() WorkForm {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.form
}

func (s *UploadService) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Items returns a copy of the pending uploads in order.
func (s *UploadService) Items() []models.UploadItem {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.UploadItem(nil), s.items...)
}

func (s *UploadService) Existing() []models.Image {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]models.Image(nil), s.existing...)
}

// AddFiles hashes files and appends them to the pending uploads. Either every
// file is added or none is.
func (s *UploadService) AddFiles(ctx context.Context, files ...FileSource) error {
	const op = "upload_service.AddFiles"

	log := s.log.With(
		slog.String("op", op),
		slog.Int("files", len(files)),
	)

	if len(files) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.state != StateIdle && s.state != StateReady {
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, ErrBusy)
	}
	prev := s.state
	s.state = StateHashing
	s.mu.Unlock()

	log.Info("hashing files")

	items := make([]models.UploadItem, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hashWorkers)
	for i, f := range files {
		g.Go(func() error {
			item, err := s.prepare(gctx, f)
			if err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		for _, item := range items {
			s.previews.Release(item.PreviewHandle)
		}

		s.mu.Lock()
		s.state = prev
		s.mu.Unlock()

		log.Error("failed to hash files", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	for i, item := range items {
		s.items = append(s.items, item)
		s.sources[item.ID] = files[i]
	}
	s.state = StateReady
	s.mu.Unlock()

	log.Info("files ready")

	return nil
}

// prepare reads one file in full, hashes it and mints a preview unless the
// format needs server side conversion first.
func (s *UploadService) prepare(ctx context.Context, f FileSource) (models.UploadItem, error) {
	if err := ctx.Err(); err != nil {
		return models.UploadItem{}, err
	}

	rc, err := f.Open()
	if err != nil {
		return models.UploadItem{}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return models.UploadItem{}, err
	}

	sum := sha256.Sum256(data)

	mime := f.MimeType
	if mime == "" {
		mime = mimetype.Detect(data).String()
	}
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}

	item := models.UploadItem{
		ID:                uuid.New(),
		Name:              f.Name,
		Size:              int64(len(data)),
		MimeType:          mime,
		Hash:              hex.EncodeToString(sum[:]),
		RequiresTranscode: models.RequiresTranscode(f.Name, mime),
		AIMetadata:        f.AIMetadata,
	}

	info, err := inspect(data)
	if err != nil {
		s.log.Debug("incomplete local preview metadata", slog.String("file", f.Name), sl.Err(err))
	}
	item.Width, item.Height, item.BlurHash = info.Width, info.Height, info.BlurHash

	if !item.RequiresTranscode {
		item.PreviewHandle = s.previews.Mint(data, mime)
	}

	return item, nil
}

// Remove drops the pending upload at index i.
func (s *UploadService) Remove(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrBusy
	}
	if i < 0 || i >= len(s.items) {
		return ErrNoSuchItem
	}

	item := s.items[i]
	s.previews.Release(item.PreviewHandle)
	delete(s.sources, item.ID)
	s.items = append(s.items[:i], s.items[i+1:]...)

	if len(s.items) == 0 {
		s.state = StateIdle
	}

	return nil
}

// Move reorders pending uploads.
func (s *UploadService) Move(from, to int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateReady {
		return ErrBusy
	}
	if from < 0 || from >= len(s.items) || to < 0 || to >= len(s.items) {
		return ErrNoSuchItem
	}

	item := s.items[from]
	s.items = append(s.items[:from], s.items[from+1:]...)
	s.items = append(s.items[:to], append([]models.UploadItem{item}, s.items[to:]...)...)

	return nil
}

// ReorderExisting sets the order of the images the work already has. ids must
// be a permutation of the current image ids.
func (s *UploadService) ReorderExisting(ids []uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle && s.state != StateReady {
		return ErrBusy
	}
	if len(ids) != len(s.existing) {
		return validate.Fail("image order must list all %d images", len(s.existing))
	}

	byID := make(map[uint]models.Image, len(s.existing))
	for _, img := range s.existing {
		byID[img.ID] = img
	}

	ordered := make([]models.Image, 0, len(ids))
	for _, id := range ids {
		img, ok := byID[id]
		if !ok {
			return validate.Fail("image %d does not belong to this work", id)
		}
		delete(byID, id)
		ordered = append(ordered, img)
	}
	s.existing = ordered

	return nil
}

// Save validates the form, checks the pending uploads for images the server
// already has, asks the confirmer when it finds some and commits.
func (s *UploadService) Save(ctx context.Context) (*models.Work, error) {
	const op = "upload_service.Save"

	log := s.log.With(slog.String("op", op))

	s.mu.Lock()
	if s.state != StateIdle && s.state != StateReady {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, ErrBusy)
	}

	if err := s.validateLocked(); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	prev := s.state
	hashes := uniqueHashes(s.items)

	if len(hashes) == 0 {
		s.state = StateCommitting
		s.mu.Unlock()

		return s.commit(ctx, prev)
	}

	s.state = StateCheckingDuplicates
	s.mu.Unlock()

	log.Info("checking for duplicate images", slog.Int("hashes", len(hashes)))

	dups, err := s.api.CheckDuplicateImages(ctx, dto.CheckDuplicatesRequest{ImageHashes: hashes})
	if err != nil {
		metrics.DuplicateChecks.WithLabelValues("error").Inc()
		s.setState(prev)
		log.Error("duplicate check failed", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(dups) == 0 {
		metrics.DuplicateChecks.WithLabelValues("clean").Inc()
		s.setState(StateCommitting)

		return s.commit(ctx, prev)
	}

	report := buildReport(dups)
	s.setState(StateAwaitingConfirmation)

	log.Info("duplicates found",
		slog.Int("hashes", len(report.Hashes)),
		slog.Int("works", len(report.WorkIDs)),
	)

	ok, err := s.confirmer.ConfirmDuplicates(ctx, report)
	if err != nil || !ok {
		metrics.DuplicateChecks.WithLabelValues("cancelled").Inc()
		s.setState(prev)

		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, errors.Join(ErrCancelled, err))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrCancelled)
	}

	metrics.DuplicateChecks.WithLabelValues("confirmed").Inc()
	s.setState(StateCommitting)

	return s.commit(ctx, prev)
}

func (s *UploadService) validateLocked() error {
	form := s.form
	form.Title = strings.TrimSpace(form.Title)
	if err := validate.Struct(form); err != nil {
		return err
	}

	if s.workID == 0 && len(s.items) == 0 {
		return validate.Fail("at least one image is required")
	}

	return nil
}

// commit sends the work and its files. On failure the session returns to
// prev with everything intact.
func (s *UploadService) commit(ctx context.Context, prev State) (*models.Work, error) {
	const op = "upload_service.commit"

	s.mu.Lock()
	form := s.form
	form.Title = strings.TrimSpace(form.Title)
	workID := s.workID
	order := make([]uint, 0, len(s.existing))
	for _, img := range s.existing {
		order = append(order, img.ID)
	}
	files := make([]dto.UploadFile, 0, len(s.items))
	for _, item := range s.items {
		src := s.sources[item.ID]
		files = append(files, dto.UploadFile{
			Name:       item.Name,
			Open:       src.Open,
			Hash:       item.Hash,
			AIMetadata: item.AIMetadata,
		})
	}
	s.mu.Unlock()

	log := s.log.With(
		slog.String("op", op),
		slog.Any("work_id", workID),
		slog.Int("files", len(files)),
	)

	var (
		work *models.Work
		err  error
	)
	if workID == 0 {
		work, err = s.api.CreateWork(ctx, dto.CreateWorkInput{
			Title:       form.Title,
			Description: form.Description,
			Rating:      form.Rating,
			IsPublic:    form.IsPublic,
			TagIDs:      form.TagIDs,
		}, files)
	} else {
		work, err = s.updateExisting(ctx, workID, form, order, files)
	}
	if err != nil {
		s.setState(prev)
		log.Error("failed to save work", sl.Err(err))

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s.mu.Lock()
	for _, item := range s.items {
		s.previews.Release(item.PreviewHandle)
	}
	s.items = nil
	s.sources = make(map[uuid.UUID]FileSource)
	s.workID = work.ID
	s.existing = append([]models.Image(nil), work.Images...)
	s.state = StateIdle
	s.mu.Unlock()

	log.Info("work saved", slog.Any("id", work.ID))

	return work, nil
}

func (s *UploadService) updateExisting(ctx context.Context, workID uint, form WorkForm, order []uint, files []dto.UploadFile) (*models.Work, error) {
	tagIDs := form.TagIDs
	if tagIDs == nil {
		tagIDs = []uint{}
	}

	work, err := s.api.UpdateWork(ctx, workID, dto.UpdateWorkRequest{
		Title:       form.Title,
		Description: form.Description,
		Rating:      form.Rating,
		IsPublic:    form.IsPublic,
		TagIDs:      tagIDs,
	})
	if err != nil {
		return nil, err
	}

	if len(order) > 0 {
		if err := s.api.UpdateImageOrder(ctx, workID, order); err != nil {
			return nil, err
		}
		work.Images = reorder(work.Images, order)
	}

	if len(files) > 0 {
		added, err := s.api.AddImages(ctx, workID, files)
		if err != nil {
			return nil, err
		}
		work.Images = append(work.Images, added...)
	}

	return work, nil
}

// Discard drops every pending upload and releases its preview.
func (s *UploadService) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range s.items {
		s.previews.Release(item.PreviewHandle)
	}
	s.items = nil
	s.sources = make(map[uuid.UUID]FileSource)
	if s.state == StateReady {
		s.state = StateIdle
	}
}

func (s *UploadService) setState(st State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = st
}

// uniqueHashes keeps the first occurrence of every hash, in order.
func uniqueHashes(items []models.UploadItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item.Hash]; ok {
			continue
		}
		seen[item.Hash] = struct{}{}
		out = append(out, item.Hash)
	}
	return out
}

func buildReport(dups []models.DuplicateImageInfo) DuplicateReport {
	report := DuplicateReport{Matches: dups}

	seenHash := make(map[string]struct{})
	seenWork := make(map[uint]struct{})
	for _, d := range dups {
		if _, ok := seenHash[d.ImageHash]; !ok {
			seenHash[d.ImageHash] = struct{}{}
			report.Hashes = append(report.Hashes, d.ImageHash)
		}
		if _, ok := seenWork[d.WorkID]; !ok {
			seenWork[d.WorkID] = struct{}{}
			report.WorkIDs = append(report.WorkIDs, d.WorkID)
		}
	}

	return report
}

func reorder(images []models.Image, order []uint) []models.Image {
	byID := make(map[uint]models.Image, len(images))
	for _, img := range images {
		byID[img.ID] = img
	}

	out := make([]models.Image, 0, len(images))
	for _, id := range order {
		if img, ok := byID[id]; ok {
			out = append(out, img)
			delete(byID, id)
		}
	}
	for _, img := range images {
		if _, ok := byID[img.ID]; ok {
			out = append(out, img)
		}
	}
	return out
}
