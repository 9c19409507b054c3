package templates

import (
	"context"
	"errors"
	"fmt"
	"io"

	"supplydocs/internal/storage"
)

// ErrNotFound is returned when the named template object does not exist.
var ErrNotFound = errors.New("template not found")

// Store fetches named document templates.
type Store interface {
	// Fetch returns the template content as a fresh buffer. Each call
	// returns an independent copy; concurrent callers never share state.
	Fetch(ctx context.Context, name string) ([]byte, error)
}

// objectStore reads templates from the shared object storage backend.
type objectStore struct {
	store storage.Storage
}

// NewObjectStore creates a template store backed by object storage.
func NewObjectStore(store storage.Storage) Store {
	return &objectStore{store: store}
}

func (s *objectStore) Fetch(ctx context.Context, name string) ([]byte, error) {
	rc, _, err := s.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("fetch template %s: %w", name, err)
	}
	defer rc.Close()

	buf, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read template %s: %w", name, err)
	}
	return buf, nil
}
