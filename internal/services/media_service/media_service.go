package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"illust_nest/internal/domain/models"
	"illust_nest/internal/lib/logger/sl"
	rest "illust_nest/internal/transport/http"
)

type ImageFetcher interface {
	FetchImage(ctx context.Context, variant models.ImageVariant, path string, public bool) (*rest.Binary, error)
}

type State int

const (
	StatePending State = iota
	StateLoading
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Source identifies what an Image shows. Two sources with the same path,
// variant and access mode are the same image.
type Source struct {
	Path    string
	Variant models.ImageVariant
	Public  bool
	Lazy    bool
	Bounds  Rect // where the image sits, only used when Lazy
}

func (s Source) same(o Source) bool {
	return s.Path == o.Path && s.Variant == o.Variant && s.Public == o.Public
}

// MediaService loads images that need the bearer token and exposes them as
// handles in a HandleRegistry.
type MediaService struct {
	log      *slog.Logger
	fetcher  ImageFetcher
	registry *HandleRegistry
	viewport *Viewport
}

// NewMediaService builds a loader. viewport may be nil, in which case lazy
// images wait for an explicit Visible call.
func NewMediaService(log *slog.Logger, fetcher ImageFetcher, registry *HandleRegistry, viewport *Viewport) *MediaService {
	return &MediaService{
		log:      log,
		fetcher:  fetcher,
		registry: registry,
		viewport: viewport,
	}
}

func (s *MediaService) Registry() *HandleRegistry {
	return s.registry
}

// Mount creates an image for src. Eager images start fetching immediately.
func (s *MediaService) Mount(src Source) *Image {
	img := &Image{svc: s}
	img.SetSource(src)

	return img
}

// Image is one mounted image. It owns at most one live handle at a time.
type Image struct {
	svc *MediaService

	mu        sync.Mutex
	src       Source
	mounted   bool
	unmounted bool
	state     State
	handle    string
	err       error
	gen       uint64
	cancel    context.CancelFunc
	settled   chan struct{}
	stopWatch func()
}

// SetSource points the image at src. A source equal to the current one is
// ignored; anything else drops the old handle and starts over.
func (i *Image) SetSource(src Source) {
	i.mu.Lock()
	if i.unmounted || (i.mounted && i.src.same(src)) {
		i.mu.Unlock()
		return
	}

	i.mounted = true
	i.resetLocked()
	i.src = src
	i.state = StatePending

	if !src.Lazy {
		i.startLocked()
		i.mu.Unlock()
		return
	}

	gen := i.gen
	i.mu.Unlock()

	i.watch(gen, src.Bounds)
}

// watch subscribes to the viewport. The callback may run before Observe
// returns, so the subscription is only kept if nothing moved on meanwhile.
func (i *Image) watch(gen uint64, bounds Rect) {
	vp := i.svc.viewport
	if vp == nil {
		return
	}

	stop := vp.Observe(bounds, LookaheadMargin, i.Visible)

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.gen != gen || i.unmounted {
		stop()
		return
	}
	i.stopWatch = stop
}

// Visible starts the fetch of a lazy image that has not loaded yet. It also
// retries a failed image.
func (i *Image) Visible() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.unmounted || !i.mounted {
		return
	}
	if i.state != StatePending && i.state != StateFailed {
		return
	}

	if i.stopWatch != nil {
		i.stopWatch()
		i.stopWatch = nil
	}
	i.startLocked()
}

// Unmount releases the handle and abandons any fetch in flight. It is safe to
// call more than once.
func (i *Image) Unmount() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.unmounted {
		return
	}
	i.unmounted = true
	i.resetLocked()
}

func (i *Image) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.state
}

// Handle returns the live handle id, or "" when nothing is loaded.
func (i *Image) Handle() string {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.handle
}

func (i *Image) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.err
}

func (i *Image) Source() Source {
	i.mu.Lock()
	defer i.mu.Unlock()

	return i.src
}

// Wait blocks until the current fetch settles. It returns at once when no
// fetch is running.
func (i *Image) Wait(ctx context.Context) error {
	i.mu.Lock()
	settled := i.settled
	i.mu.Unlock()

	if settled == nil {
		return nil
	}

	select {
	case <-settled:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resetLocked invalidates the running effect and drops everything it produced.
func (i *Image) resetLocked() {
	i.gen++
	if i.cancel != nil {
		i.cancel()
		i.cancel = nil
	}
	if i.stopWatch != nil {
		i.stopWatch()
		i.stopWatch = nil
	}
	if i.handle != "" {
		i.svc.registry.Release(i.handle)
		i.handle = ""
	}
	i.err = nil
	i.settled = nil
}

func (i *Image) startLocked() {
	i.gen++
	if i.cancel != nil {
		i.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	settled := make(chan struct{})

	i.cancel = cancel
	i.settled = settled
	i.state = StateLoading
	i.err = nil

	go i.fetch(ctx, i.gen, i.src, settled)
}

func (i *Image) fetch(ctx context.Context, gen uint64, src Source, settled chan struct{}) {
	const op = "media_service.Image.fetch"

	log := i.svc.log.With(
		slog.String("op", op),
		slog.String("path", src.Path),
		slog.String("variant", string(src.Variant)),
	)

	defer close(settled)

	bin, err := i.svc.fetcher.FetchImage(ctx, src.Variant, src.Path, src.Public)

	i.mu.Lock()
	defer i.mu.Unlock()

	if gen != i.gen || i.unmounted {
		log.Debug("dropping stale image result")
		return
	}
	i.cancel()
	i.cancel = nil

	if err != nil {
		log.Error("failed to load image", sl.Err(err))

		i.state = StateFailed
		i.err = fmt.Errorf("%s: %w", op, err)
		return
	}

	i.handle = i.svc.registry.Mint(bin.Data, bin.ContentType)
	i.state = StateLoaded
}
