package application

import (
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// occurrenceCache is a read-through cache for ListOccurrences results. Every
// key embeds the current version, so bumping the version after a write makes
// all earlier entries unreachable; they then age out of the LRU.
type occurrenceCache struct {
	version atomic.Uint64
	entries *expirable.LRU[string, OccurrenceList]
}

func newOccurrenceCache(size int, ttl time.Duration) *occurrenceCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if size <= 0 {
		size = 256
	}
	return &occurrenceCache{entries: expirable.NewLRU[string, OccurrenceList](size, nil, ttl)}
}

func (c *occurrenceCache) Get(key string) (OccurrenceList, bool) {
	if c == nil {
		return OccurrenceList{}, false
	}
	list, ok := c.entries.Get(key)
	if !ok {
		return OccurrenceList{}, false
	}
	return list.clone(), true
}

func (c *occurrenceCache) Store(key string, list OccurrenceList) {
	if c == nil {
		return
	}
	c.entries.Add(key, list.clone())
}

// Invalidate bumps the version tag and returns the new value.
func (c *occurrenceCache) Invalidate() uint64 {
	if c == nil {
		return 0
	}
	c.entries.Purge()
	return c.version.Add(1)
}

// Key builds the lookup key for a query. Owner order does not matter.
func (c *occurrenceCache) Key(params ListOccurrencesParams, timezone string) string {
	var version uint64
	if c != nil {
		version = c.version.Load()
	}
	owners := slices.Clone(params.OwnerIDs)
	slices.Sort(owners)

	var b strings.Builder
	b.WriteString(strconv.FormatUint(version, 10))
	b.WriteByte('|')
	b.WriteString(params.Start.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(params.End.UTC().Format(time.RFC3339Nano))
	b.WriteByte('|')
	b.WriteString(timezone)
	b.WriteByte('|')
	b.WriteString(strings.Join(slices.Compact(owners), ","))
	return b.String()
}
