package application

import (
	"context"
	"sync"
	"time"

	"github.com/example/family-calendar/internal/timecodec"
)

// ChangeType names a mutation in the change feed.
type ChangeType string

const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is published after every successful event mutation.
type Change struct {
	Type    ChangeType `json:"type"`
	EventID string     `json:"event_id"`
	OwnerID string     `json:"owner_id"`
	At      time.Time  `json:"at"`
}

// ChangePublisher forwards changes to other processes.
type ChangePublisher interface {
	PublishChange(ctx context.Context, change Change) error
}

// Notification is a push message for the household.
type Notification struct {
	Title    string
	Message  string
	Priority int
	Tags     []string
}

// Notifier delivers push notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// ExpansionObserver receives expansion statistics, typically for metrics.
type ExpansionObserver interface {
	ObserveExpansion(events, occurrences, faults int, elapsed time.Duration)
}

// zoneRegistry caches codecs by zone name. Zone data never changes while the
// process runs, so entries are never evicted.
type zoneRegistry struct {
	fallback *timecodec.Codec
	codecs   sync.Map
}

func newZoneRegistry(fallback *timecodec.Codec) *zoneRegistry {
	if fallback == nil {
		fallback = timecodec.New(nil)
	}
	return &zoneRegistry{fallback: fallback}
}

// Lookup returns the codec for name, or the deployment codec when name is empty.
func (r *zoneRegistry) Lookup(name string) (*timecodec.Codec, error) {
	if name == "" || name == r.fallback.Name() {
		return r.fallback, nil
	}
	if cached, ok := r.codecs.Load(name); ok {
		return cached.(*timecodec.Codec), nil
	}
	codec, err := timecodec.Load(name)
	if err != nil {
		return nil, err
	}
	actual, _ := r.codecs.LoadOrStore(name, codec)
	return actual.(*timecodec.Codec), nil
}
