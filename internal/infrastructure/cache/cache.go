// Package cache is the read-side cache in front of the document repository.
// Entries are stamped with the time they were fetched and the schema version
// that produced them; freshness is decided on read against the caller's max
// age, and nothing is swept in the background.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

type Kind string

const (
	KindMessages       Kind = "messages"
	KindRoom           Kind = "room"
	KindRooms          Kind = "rooms"
	KindContacts       Kind = "contacts"
	KindFriendRequests Kind = "friend_requests"
	KindJoinRequests   Kind = "join_requests"
)

// Bypass as a max age skips the lookup and always reads through.
const Bypass time.Duration = -1

// Generation counts the invalidations of one key.
type Generation uint64

// Cache is safe for concurrent use. The key is the owner login, or the room
// id for room-scoped kinds.
//
// A reader captures Generation before fetching the backing document and
// passes it to Set. If the key was invalidated in between, Set drops the
// value, so a slow read cannot refill the cache with data older than a
// confirmed write.
type Cache interface {
	// Get returns the cached data only if present, written under the current
	// schema version and no older than maxAge.
	Get(ctx context.Context, kind Kind, key string, maxAge time.Duration) ([]byte, bool)
	Generation(ctx context.Context, kind Kind, key string) Generation
	// Set stores data, which must be a JSON document.
	Set(ctx context.Context, kind Kind, key string, gen Generation, data []byte) error
	Invalidate(ctx context.Context, kind Kind, key string) error
}

// Entry is the stored form of a cached value.
type Entry struct {
	Data          json.RawMessage `json:"data"`
	FetchedAt     time.Time       `json:"fetched_at"`
	SchemaVersion int             `json:"schema_version"`
}

// Fresh reports whether the entry may be served. Age is measured in whole
// milliseconds, so an entry read back right after it was stored is fresh
// even for a zero max age.
func (e Entry) Fresh(schemaVersion int, maxAge time.Duration, now time.Time) bool {
	if e.SchemaVersion != schemaVersion || maxAge < 0 {
		return false
	}
	age := now.Sub(e.FetchedAt).Truncate(time.Millisecond)
	return age <= maxAge
}

// Clock is overridden in tests.
type Clock func() time.Time

// Load decodes a cached value. Undecodable entries count as a miss, and a
// negative maxAge never consults the cache.
func Load[T any](ctx context.Context, c Cache, kind Kind, key string, maxAge time.Duration) (T, bool) {
	var v T
	if maxAge < 0 {
		return v, false
	}
	data, ok := c.Get(ctx, kind, key, maxAge)
	if !ok {
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		var zero T
		return zero, false
	}
	return v, true
}

func Store[T any](ctx context.Context, c Cache, kind Kind, key string, gen Generation, v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, kind, key, gen, data)
}

func entryKey(kind Kind, key string) string {
	return string(kind) + ":" + key
}
