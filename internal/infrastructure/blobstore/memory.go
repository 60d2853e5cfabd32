package blobstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hilthontt/repochat/internal/domain"
)

// Op names a Client method for hooks and metrics.
type Op string

const (
	OpGet             Op = "get"
	OpPut             Op = "put"
	OpCreate          Op = "create"
	OpList            Op = "list"
	OpDelete          Op = "delete"
	OpContainerExists Op = "container_exists"
	OpCreateContainer Op = "create_container"
)

// Hook runs before every MemoryStore operation; a non-nil error is returned
// instead of performing it. Tests use it to inject failures.
type Hook func(ctx context.Context, op Op, owner, path string) error

type storedBlob struct {
	content string
	version Version
}

// MemoryStore keeps blobs in process. Versions are git-style content hashes.
type MemoryStore struct {
	mu         sync.RWMutex
	containers map[string]map[string]storedBlob // owner -> path -> blob
	hook       Hook
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		containers: make(map[string]map[string]storedBlob),
	}
}

func (m *MemoryStore) SetHook(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = h
}

func (m *MemoryStore) runHook(ctx context.Context, op Op, owner, path string) error {
	m.mu.RLock()
	h := m.hook
	m.mu.RUnlock()
	if h == nil {
		return nil
	}
	return h(ctx, op, owner, path)
}

func (m *MemoryStore) Get(ctx context.Context, owner, path string) (Blob, error) {
	if err := m.runHook(ctx, OpGet, owner, path); err != nil {
		return Blob{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	blobs, ok := m.containers[owner]
	if !ok {
		return Blob{}, fmt.Errorf("container %s: %w", owner, domain.ErrNotFound)
	}
	b, ok := blobs[cleanPath(path)]
	if !ok {
		return Blob{}, fmt.Errorf("%s/%s: %w", owner, path, domain.ErrNotFound)
	}
	return Blob{Content: b.content, Version: b.version}, nil
}

func (m *MemoryStore) Put(ctx context.Context, owner, path, content string, version Version) (Version, error) {
	if err := m.runHook(ctx, OpPut, owner, path); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	blobs, ok := m.containers[owner]
	if !ok {
		return "", fmt.Errorf("container %s: %w", owner, domain.ErrNotFound)
	}

	path = cleanPath(path)
	if version != "" {
		current, exists := blobs[path]
		if !exists || current.version != version {
			return "", fmt.Errorf("%s/%s: %w", owner, path, domain.ErrVersionConflict)
		}
	}

	return m.store(blobs, path, content), nil
}

func (m *MemoryStore) Create(ctx context.Context, owner, path, content string) (Version, error) {
	if err := m.runHook(ctx, OpCreate, owner, path); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	blobs, ok := m.containers[owner]
	if !ok {
		return "", fmt.Errorf("container %s: %w", owner, domain.ErrNotFound)
	}

	path = cleanPath(path)
	if _, exists := blobs[path]; exists {
		return "", fmt.Errorf("%s/%s already exists: %w", owner, path, domain.ErrVersionConflict)
	}

	return m.store(blobs, path, content), nil
}

// store must be called with the write lock held.
func (m *MemoryStore) store(blobs map[string]storedBlob, path, content string) Version {
	v := contentVersion(content)
	blobs[path] = storedBlob{content: content, version: v}
	return v
}

func (m *MemoryStore) List(ctx context.Context, owner, dir string) ([]Entry, error) {
	if err := m.runHook(ctx, OpList, owner, dir); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	blobs, ok := m.containers[owner]
	if !ok {
		return nil, fmt.Errorf("container %s: %w", owner, domain.ErrNotFound)
	}

	prefix := cleanPath(dir)
	if prefix != "" {
		prefix += "/"
	}

	seen := make(map[string]EntryType)
	for p := range blobs {
		rest, found := strings.CutPrefix(p, prefix)
		if !found || rest == "" {
			continue
		}
		if name, _, nested := strings.Cut(rest, "/"); nested {
			seen[name] = EntryDir
		} else {
			seen[name] = EntryFile
		}
	}

	if len(seen) == 0 {
		return nil, fmt.Errorf("%s/%s: %w", owner, dir, domain.ErrNotFound)
	}

	entries := make([]Entry, 0, len(seen))
	for name, typ := range seen {
		entries = append(entries, Entry{Name: name, Type: typ})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	return entries, nil
}

func (m *MemoryStore) Delete(ctx context.Context, owner, path string) error {
	if err := m.runHook(ctx, OpDelete, owner, path); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	blobs, ok := m.containers[owner]
	if !ok {
		return fmt.Errorf("container %s: %w", owner, domain.ErrNotFound)
	}
	path = cleanPath(path)
	if _, exists := blobs[path]; !exists {
		return fmt.Errorf("%s/%s: %w", owner, path, domain.ErrNotFound)
	}
	delete(blobs, path)
	return nil
}

func (m *MemoryStore) ContainerExists(ctx context.Context, owner string) (bool, error) {
	if err := m.runHook(ctx, OpContainerExists, owner, ""); err != nil {
		return false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.containers[owner]
	return ok, nil
}

func (m *MemoryStore) CreateContainer(ctx context.Context, owner string) error {
	if err := m.runHook(ctx, OpCreateContainer, owner, ""); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.containers[owner]; !ok {
		m.containers[owner] = make(map[string]storedBlob)
	}
	return nil
}

// Snapshot copies a container's contents as path -> content. Tests compare
// snapshots to check idempotence.
func (m *MemoryStore) Snapshot(owner string) map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string)
	for p, b := range m.containers[owner] {
		out[p] = b.content
	}
	return out
}

func cleanPath(p string) string {
	return strings.Trim(p, "/")
}

func contentVersion(content string) Version {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write([]byte(content))
	return Version(hex.EncodeToString(h.Sum(nil)))
}
