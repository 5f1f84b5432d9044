// Package storage holds the repository capability interface the rest of the
// service codes against, and the in-memory implementation used when no
// database is configured.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dharsanguruparan/QCBoard/internal/model"
)

var (
	// ErrNotFound matches every NotFoundError; compare with errors.Is.
	ErrNotFound = errors.New("not found")
)

// NotFoundError names the kind and id of a missing record.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s: not found", e.Kind, e.ID) }

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds the error every Repository returns for an unknown id.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// Repository is the capability set every entity kind is stored behind.
// An empty projectID on List means no filter. Update never creates: an
// unknown id returns ErrNotFound and fn is not called.
type Repository[T model.Entity[T]] interface {
	List(ctx context.Context, projectID string) ([]T, error)
	Get(ctx context.Context, id string) (T, error)
	Create(ctx context.Context, item T) (T, error)
	Update(ctx context.Context, id string, fn func(T) T) (T, error)
	// Put inserts or replaces item under its own id. Used by seeding.
	Put(ctx context.Context, item T) error
}

// MemoryStore keeps one kind of entity in a map plus a slice that remembers
// insertion order. A single RWMutex guards both; Update holds the write lock
// for the whole read-modify-write so concurrent partial updates cannot lose
// each other's fields.
type MemoryStore[T model.Entity[T]] struct {
	kind  string
	mu    sync.RWMutex
	items map[string]T
	order []string
}

// NewMemoryStore constructs an empty store. kind is only used in error text.
func NewMemoryStore[T model.Entity[T]](kind string) *MemoryStore[T] {
	return &MemoryStore[T]{
		kind:  kind,
		items: make(map[string]T),
	}
}

func (m *MemoryStore[T]) List(_ context.Context, projectID string) ([]T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]T, 0, len(m.order))
	for _, id := range m.order {
		item := m.items[id]
		if projectID != "" && item.ProjectRef() != projectID {
			continue
		}
		out = append(out, item.Clone())
	}
	return out, nil
}

func (m *MemoryStore[T]) Get(_ context.Context, id string) (T, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	item, ok := m.items[id]
	if !ok {
		var zero T
		return zero, m.notFound(id)
	}
	return item.Clone(), nil
}

// Create ignores any id on item and assigns a fresh random one.
func (m *MemoryStore[T]) Create(_ context.Context, item T) (T, error) {
	stored := item.WithID(uuid.NewString()).Clone()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(stored)
	return stored.Clone(), nil
}

func (m *MemoryStore[T]) Update(_ context.Context, id string, fn func(T) T) (T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.items[id]
	if !ok {
		var zero T
		return zero, m.notFound(id)
	}
	// The id is pinned so fn cannot move the record.
	next := fn(cur.Clone()).WithID(id)
	m.items[id] = next.Clone()
	return next, nil
}

func (m *MemoryStore[T]) Put(_ context.Context, item T) error {
	if item.EntityID() == "" {
		return fmt.Errorf("put %s: empty id", m.kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertLocked(item.Clone())
	return nil
}

func (m *MemoryStore[T]) insertLocked(item T) {
	id := item.EntityID()
	if _, exists := m.items[id]; !exists {
		m.order = append(m.order, id)
	}
	m.items[id] = item
}

func (m *MemoryStore[T]) notFound(id string) error {
	return NotFound(m.kind, id)
}
