package services

import "sync"

// LookaheadMargin widens the visible area so images start loading slightly
// before they scroll into view.
const LookaheadMargin = 120

type Rect struct {
	Top, Left, Width, Height float64
}

func (r Rect) Bottom() float64 { return r.Top + r.Height }
func (r Rect) Right() float64  { return r.Left + r.Width }

// Intersects reports whether r overlaps o grown by margin on every side.
func (r Rect) Intersects(o Rect, margin float64) bool {
	return r.Left < o.Right()+margin &&
		r.Right() > o.Left-margin &&
		r.Top < o.Bottom()+margin &&
		r.Bottom() > o.Top-margin
}

type observer struct {
	target Rect
	margin float64
	fn     func()
}

// Viewport tracks the visible area and fires one-shot callbacks for targets
// that come into view.
type Viewport struct {
	mu        sync.Mutex
	area      Rect
	nextID    int
	observers map[int]observer
}

func NewViewport(area Rect) *Viewport {
	return &Viewport{area: area, observers: make(map[int]observer)}
}

// Observe registers fn to run once when target intersects the viewport. A
// target that is already visible fires right away. The returned func cancels
// the subscription and may be called any number of times.
func (v *Viewport) Observe(target Rect, margin float64, fn func()) (stop func()) {
	v.mu.Lock()
	if target.Intersects(v.area, margin) {
		v.mu.Unlock()
		fn()
		return func() {}
	}

	defer v.mu.Unlock()
	return v.addLocked(target, margin, fn)
}

// ObserveScroll is Observe without the immediate fire: fn waits for the next
// Scroll that leaves target in view.
func (v *Viewport) ObserveScroll(target Rect, margin float64, fn func()) (stop func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.addLocked(target, margin, fn)
}

func (v *Viewport) addLocked(target Rect, margin float64, fn func()) (stop func()) {
	id := v.nextID
	v.nextID++
	v.observers[id] = observer{target: target, margin: margin, fn: fn}

	return func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		delete(v.observers, id)
	}
}

// Scroll moves the visible area and fires every observer now in view.
func (v *Viewport) Scroll(area Rect) {
	v.mu.Lock()
	v.area = area

	var fire []func()
	for id, o := range v.observers {
		if o.target.Intersects(area, o.margin) {
			fire = append(fire, o.fn)
			delete(v.observers, id)
		}
	}
	v.mu.Unlock()

	for _, fn := range fire {
		fn()
	}
}

// Observers is the number of subscriptions still waiting.
func (v *Viewport) Observers() int {
	v.mu.Lock()
	defer v.mu.Unlock()

	return len(v.observers)
}
