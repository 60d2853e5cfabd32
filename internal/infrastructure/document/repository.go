// Package document is the read-modify-write layer over the blob store.
// Every document is JSON; every mutation carries the version it was read at.
package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/hilthontt/repochat/internal/domain"
	"github.com/hilthontt/repochat/internal/infrastructure/blobstore"
	"github.com/hilthontt/repochat/internal/infrastructure/codec"
	"github.com/hilthontt/repochat/internal/infrastructure/logging"
	"github.com/hilthontt/repochat/internal/infrastructure/retry"
)

// ErrNoChange tells Update that the mutation left the document as it was,
// so nothing is written.
var ErrNoChange = errors.New("document unchanged")

type Store interface {
	// Read decodes the document at path into dst. An absent document leaves
	// dst untouched and returns an empty version.
	Read(ctx context.Context, owner, path string, dst any) (blobstore.Version, error)

	// Write stores doc. An empty version creates the document and fails with
	// domain.ErrVersionConflict if it already exists; otherwise version must
	// match the stored one.
	Write(ctx context.Context, owner, path string, doc any, version blobstore.Version) (blobstore.Version, error)

	// List returns the entries of dir, or nothing if dir does not exist.
	List(ctx context.Context, owner, dir string) ([]blobstore.Entry, error)

	Delete(ctx context.Context, owner, path string) error
}

type Repository struct {
	client blobstore.Client
	policy *retry.Policy
	logger logging.Logger
}

func NewRepository(client blobstore.Client, policy *retry.Policy, logger logging.Logger) *Repository {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Repository{
		client: client,
		policy: policy,
		logger: logger,
	}
}

func (r *Repository) Read(ctx context.Context, owner, path string, dst any) (blobstore.Version, error) {
	blob, err := retry.Do(ctx, r.policy, func(ctx context.Context) (blobstore.Blob, error) {
		return r.client.Get(ctx, owner, path)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read %s/%s: %w", owner, path, err)
	}

	if err := codec.Decode(blob.Content, dst); err != nil {
		return "", fmt.Errorf("read %s/%s: %w", owner, path, err)
	}
	return blob.Version, nil
}

func (r *Repository) Write(ctx context.Context, owner, path string, doc any, version blobstore.Version) (blobstore.Version, error) {
	content, err := codec.Encode(doc)
	if err != nil {
		return "", fmt.Errorf("write %s/%s: %w", owner, path, err)
	}

	next, err := retry.Do(ctx, r.policy, func(ctx context.Context) (blobstore.Version, error) {
		if version == "" {
			return r.client.Create(ctx, owner, path, content)
		}
		return r.client.Put(ctx, owner, path, content, version)
	})
	if err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			r.logger.Debug(logging.BlobStore, logging.Conflict, "document changed since read", map[logging.ExtraKey]any{
				logging.Owner: owner,
				logging.Path:  path,
			})
		}
		return "", fmt.Errorf("write %s/%s: %w", owner, path, err)
	}
	return next, nil
}

func (r *Repository) List(ctx context.Context, owner, dir string) ([]blobstore.Entry, error) {
	entries, err := retry.Do(ctx, r.policy, func(ctx context.Context) ([]blobstore.Entry, error) {
		return r.client.List(ctx, owner, dir)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %s/%s: %w", owner, dir, err)
	}
	return entries, nil
}

// Delete is idempotent: an absent document is not an error.
func (r *Repository) Delete(ctx context.Context, owner, path string) error {
	err := retry.Run(ctx, r.policy, func(ctx context.Context) error {
		return r.client.Delete(ctx, owner, path)
	})
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("delete %s/%s: %w", owner, path, err)
	}
	return nil
}

// Update reads the document at path (def when absent), applies mutate and
// writes the result back at the version it was read at. A conflicting
// concurrent write surfaces as domain.ErrVersionConflict; Update never
// retries on its own.
func Update[T any](ctx context.Context, s Store, owner, path string, def T, mutate func(doc *T) error) (T, error) {
	doc := def
	version, err := s.Read(ctx, owner, path, &doc)
	if err != nil {
		return doc, err
	}

	if err := mutate(&doc); err != nil {
		if errors.Is(err, ErrNoChange) {
			return doc, nil
		}
		return doc, err
	}

	if _, err := s.Write(ctx, owner, path, doc, version); err != nil {
		return doc, err
	}
	return doc, nil
}

// Get is Read for callers that want a value back.
func Get[T any](ctx context.Context, s Store, owner, path string, def T) (T, blobstore.Version, error) {
	doc := def
	version, err := s.Read(ctx, owner, path, &doc)
	return doc, version, err
}
