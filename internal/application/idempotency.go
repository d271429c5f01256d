package application

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/blake2b"

	"github.com/example/family-calendar/internal/calendar"
)

// IdempotencyRecord is what a key remembers: the payload fingerprint and,
// once the create has finished, the id of the event it produced.
type IdempotencyRecord struct {
	Fingerprint string `json:"fingerprint"`
	EventID     string `json:"event_id,omitempty"`
}

// Pending reports whether the first request for the key is still running.
func (r IdempotencyRecord) Pending() bool {
	return r.EventID == ""
}

// IdempotencyStore remembers idempotency keys for a limited time.
type IdempotencyStore interface {
	// Claim stores rec under key when the key is free and reports true. When
	// the key is taken it returns the stored record and false.
	Claim(ctx context.Context, key string, rec IdempotencyRecord, ttl time.Duration) (IdempotencyRecord, bool, error)
	// Complete overwrites the record once the event exists.
	Complete(ctx context.Context, key string, rec IdempotencyRecord, ttl time.Duration) error
	// Release frees a key whose request failed.
	Release(ctx context.Context, key string) error
}

// MemoryIdempotencyStore keeps keys in a bounded, expiring LRU. It is the
// default when no shared store is configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, IdempotencyRecord]
}

// NewMemoryIdempotencyStore keeps at most size keys for ttl each.
func NewMemoryIdempotencyStore(size int, ttl time.Duration) *MemoryIdempotencyStore {
	if size <= 0 {
		size = 4096
	}
	return &MemoryIdempotencyStore{entries: expirable.NewLRU[string, IdempotencyRecord](size, nil, ttl)}
}

// Claim ignores ttl; every entry lives for the store-wide TTL.
func (m *MemoryIdempotencyStore) Claim(_ context.Context, key string, rec IdempotencyRecord, _ time.Duration) (IdempotencyRecord, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries.Get(key); ok {
		return existing, false, nil
	}
	m.entries.Add(key, rec)
	return rec, true, nil
}

func (m *MemoryIdempotencyStore) Complete(_ context.Context, key string, rec IdempotencyRecord, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Add(key, rec)
	return nil
}

func (m *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries.Remove(key)
	return nil
}

// Fingerprint digests the fields of a create payload that define the event.
// Server-assigned fields are ignored so a retried request matches.
func Fingerprint(input calendar.Record) string {
	input.ID = ""
	input.CreatedAt = ""
	input.UpdatedAt = ""
	payload, err := json.Marshal(input)
	if err != nil {
		return ""
	}
	sum := blake2b.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
