package services

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"illust_nest/internal/lib/validate"
)

// Pusher sends a whole draft and returns what the server stored.
type Pusher[T any] func(ctx context.Context, draft T) (T, error)

// Form is a local copy of an entity's editable fields. Nothing reaches the
// server until Save, and a rejected save leaves the draft as it was.
type Form[T any] struct {
	mu       sync.Mutex
	original T
	draft    T
	push     Pusher[T]
}

func NewForm[T any](loaded T, push Pusher[T]) *Form[T] {
	return &Form[T]{original: loaded, draft: loaded, push: push}
}

func (f *Form[T]) Draft() T {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.draft
}

func (f *Form[T]) Original() T {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.original
}

// Edit changes the draft in place.
func (f *Form[T]) Edit(fn func(draft *T)) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fn(&f.draft)
}

func (f *Form[T]) Dirty() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return !reflect.DeepEqual(f.original, f.draft)
}

// Revert throws away local edits.
func (f *Form[T]) Revert() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.draft = f.original
}

// Save validates the draft and pushes it. On success both the original and
// the draft become the stored value.
func (f *Form[T]) Save(ctx context.Context) (T, error) {
	const op = "editor_service.Form.Save"

	draft := f.Draft()

	var zero T
	if err := validate.Struct(draft); err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	stored, err := f.push(ctx, draft)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", op, err)
	}

	f.mu.Lock()
	f.original = stored
	f.draft = stored
	f.mu.Unlock()

	return stored, nil
}
