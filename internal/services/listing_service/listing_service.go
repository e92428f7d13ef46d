package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/logger/sl"
	media "illust_nest/internal/services/media_service"
	"illust_nest/internal/transport/http/dto"
)

const DefaultPageSize = 20

// SentinelMargin is how far ahead of the end of the list the next page starts loading.
const SentinelMargin = 100

var ErrSuperseded = errors.New("list was reloaded while the page was loading")

// PageFetcher loads one page of works. The private, public and collection
// lists differ only in this function.
type PageFetcher func(ctx context.Context, params dto.WorkListParams) (models.Page[models.Work], error)

// WorkList is a paginated, filterable view of works. Its pages belong to it
// alone: a new WorkList always starts from page one.
type WorkList struct {
	log      *slog.Logger
	fetch    PageFetcher
	pageSize int

	mu       sync.Mutex
	filter   Filter
	applied  Filter
	items    []models.Work
	page     int
	total    int
	hasMore  bool
	loading  bool
	idle     chan struct{} // closed when the running load settles
	gen      uint64
	selected *Selection
}

func NewWorkList(log *slog.Logger, fetch PageFetcher, pageSize int) *WorkList {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	return &WorkList{
		log:      log,
		fetch:    fetch,
		pageSize: pageSize,
		filter:   DefaultFilter(),
		applied:  DefaultFilter(),
		hasMore:  true,
		selected: NewSelection(),
	}
}

// Filter returns the form as edited, which may differ from what is applied.
func (l *WorkList) Filter() Filter {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.filter
}

// SetFilter edits the form without reloading.
func (l *WorkList) SetFilter(f Filter) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.filter = f
}

// Apply validates the form and reloads the list from page one with it.
func (l *WorkList) Apply(ctx context.Context) error {
	const op = "listing_service.WorkList.Apply"

	l.mu.Lock()
	f := l.filter
	l.mu.Unlock()

	if err := f.Validate(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	l.mu.Lock()
	l.applied = f
	l.mu.Unlock()

	return l.Reload(ctx)
}

// Reset restores every filter field to its default and reloads page one.
func (l *WorkList) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.filter = DefaultFilter()
	l.applied = DefaultFilter()
	l.mu.Unlock()

	return l.Reload(ctx)
}

// Reload fetches page one with the applied filter and replaces the items.
// A page still loading for an earlier query is discarded when it arrives.
func (l *WorkList) Reload(ctx context.Context) error {
	const op = "listing_service.WorkList.Reload"

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.startLocked()
	params := l.applied.Params(1, l.pageSize)
	l.mu.Unlock()

	page, err := l.fetch(ctx, params)

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		return fmt.Errorf("%s: %w", op, ErrSuperseded)
	}
	l.settleLocked()

	if err != nil {
		l.log.Error("failed to load works", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	l.items = append([]models.Work(nil), page.Items...)
	l.page = 1
	l.total = page.Total
	l.hasMore = len(page.Items) >= l.pageSize

	return nil
}

// LoadMore appends the next page. It reports false without fetching when a
// load is already running or the last page was short.
func (l *WorkList) LoadMore(ctx context.Context) (bool, error) {
	const op = "listing_service.WorkList.LoadMore"

	l.mu.Lock()
	if l.loading || !l.hasMore {
		l.mu.Unlock()
		return false, nil
	}
	if l.page == 0 {
		l.mu.Unlock()
		err := l.Reload(ctx)
		return err == nil, err
	}

	gen := l.gen
	next := l.page + 1
	l.startLocked()
	params := l.applied.Params(next, l.pageSize)
	l.mu.Unlock()

	log := l.log.With(slog.String("op", op), slog.Int("page", next))
	log.Debug("loading more works")

	page, err := l.fetch(ctx, params)

	l.mu.Lock()
	defer l.mu.Unlock()

	if gen != l.gen {
		return false, fmt.Errorf("%s: %w", op, ErrSuperseded)
	}
	l.settleLocked()

	if err != nil {
		log.Error("failed to load works", sl.Err(err))
		return false, fmt.Errorf("%s: %w", op, err)
	}

	l.items = append(l.items, page.Items...)
	l.page = next
	l.total = page.Total
	l.hasMore = len(page.Items) >= l.pageSize

	return true, nil
}

func (l *WorkList) startLocked() {
	l.loading = true
	if l.idle == nil {
		l.idle = make(chan struct{})
	}
}

func (l *WorkList) settleLocked() {
	l.loading = false
	if l.idle != nil {
		close(l.idle)
		l.idle = nil
	}
}

// waitIdle blocks until no load is running.
func (l *WorkList) waitIdle(ctx context.Context) error {
	l.mu.Lock()
	idle := l.idle
	l.mu.Unlock()

	if idle == nil {
		return nil
	}

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Follow loads the next page each time the sentinel at the end of the list
// comes within SentinelMargin of the viewport. bounds is asked for the
// sentinel position every time the watch is armed. The watch stays armed
// while the list has more pages: a trigger that lands during another load
// waits for it and tries again, and a failed load waits for the next scroll.
func (l *WorkList) Follow(ctx context.Context, vp *media.Viewport, bounds func() media.Rect) (stop func()) {
	const op = "listing_service.WorkList.Follow"

	var (
		mu      sync.Mutex
		stopped bool
		cancel  func()
	)

	var arm func(now bool)
	arm = func(now bool) {
		mu.Lock()
		if stopped || ctx.Err() != nil {
			mu.Unlock()
			return
		}
		mu.Unlock()

		trigger := func() {
			go func() {
				loaded, err := l.LoadMore(ctx)
				switch {
				case err == nil && loaded:
				case err == nil, errors.Is(err, ErrSuperseded):
					if err := l.waitIdle(ctx); err != nil {
						return
					}
				default:
					l.log.Warn("infinite scroll load failed", slog.String("op", op), sl.Err(err))
					if l.HasMore() {
						arm(false)
					}
					return
				}
				if l.HasMore() {
					arm(true)
				}
			}()
		}

		var c func()
		if now {
			c = vp.Observe(bounds(), SentinelMargin, trigger)
		} else {
			c = vp.ObserveScroll(bounds(), SentinelMargin, trigger)
		}

		mu.Lock()
		cancel = c
		mu.Unlock()
	}
	arm(true)

	return func() {
		mu.Lock()
		defer mu.Unlock()

		stopped = true
		if cancel != nil {
			cancel()
		}
	}
}

func (l *WorkList) Items() []models.Work {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]models.Work(nil), l.items...)
}

func (l *WorkList) HasMore() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.hasMore
}

func (l *WorkList) Loading() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.loading
}

// Page is the last page loaded, 0 before the first load.
func (l *WorkList) Page() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.page
}

func (l *WorkList) Total() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.total
}

func (l *WorkList) Selection() *Selection {
	return l.selected
}

// Remove drops works from the loaded items and the selection after they were
// deleted elsewhere.
func (l *WorkList) Remove(ids ...uint) {
	drop := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	l.mu.Lock()
	kept := l.items[:0]
	for _, w := range l.items {
		if _, ok := drop[w.ID]; !ok {
			kept = append(kept, w)
		}
	}
	l.items = kept
	l.mu.Unlock()

	l.selected.Remove(ids...)
}

// TagFetcher loads the tag list for a keyword.
type TagFetcher func(ctx context.Context, params dto.TagListParams) ([]models.Tag, error)

// TagList is the searchable tag view. The backend returns all matches at once.
type TagList struct {
	log   *slog.Logger
	fetch TagFetcher

	mu     sync.Mutex
	params dto.TagListParams
	items  []models.Tag
}

func NewTagList(log *slog.Logger, fetch TagFetcher, includeCount bool) *TagList {
	return &TagList{
		log:    log,
		fetch:  fetch,
		params: dto.TagListParams{IncludeCount: includeCount},
	}
}

// Search reloads the list for keyword.
func (t *TagList) Search(ctx context.Context, keyword string) error {
	const op = "listing_service.TagList.Search"

	t.mu.Lock()
	t.params.Keyword = keyword
	params := t.params
	t.mu.Unlock()

	tags, err := t.fetch(ctx, params)
	if err != nil {
		t.log.Error("failed to load tags", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	t.mu.Lock()
	t.items = tags
	t.mu.Unlock()

	return nil
}

func (t *TagList) Items() []models.Tag {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]models.Tag(nil), t.items...)
}
