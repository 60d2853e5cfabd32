// Package blobstore is the contract the data layer needs from the external
// versioned file-hosting API, plus the drivers that implement it.
//
// Content crosses this boundary in the store's transport encoding (base64
// text); encoding and decoding JSON documents is the codec's job.
package blobstore

import "context"

// Version is the opaque token the store assigns to a blob on every write.
type Version string

type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

type Blob struct {
	Content string
	Version Version
}

type Entry struct {
	Name string
	Type EntryType
}

// Client is implemented by every driver. All methods may fail with
// domain.ErrPermissionDenied, domain.ErrNotFound, domain.ErrRateLimited or
// domain.ErrTransient; writes may also fail with domain.ErrVersionConflict.
type Client interface {
	Get(ctx context.Context, owner, path string) (Blob, error)

	// Put writes content. An empty version overwrites unconditionally;
	// otherwise the write fails with ErrVersionConflict unless version
	// matches the stored blob.
	Put(ctx context.Context, owner, path, content string, version Version) (Version, error)

	// Create writes content only if no blob exists at path.
	Create(ctx context.Context, owner, path, content string) (Version, error)

	List(ctx context.Context, owner, dir string) ([]Entry, error)
	Delete(ctx context.Context, owner, path string) error

	ContainerExists(ctx context.Context, owner string) (bool, error)
	CreateContainer(ctx context.Context, owner string) error
}
