package relay

import (
	"sync"
	"time"
)

// DedupTTL is how long a message ID suppresses repeats. The filter is
// in-memory only, so duplicate suppression is best-effort within a single
// process lifetime.
const DedupTTL = 60 * time.Second

// Dedup is a time-windowed set of recently seen message IDs. Expired
// entries are evicted lazily while handling subsequent calls, bounding
// memory to live traffic volume.
type Dedup struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

// NewDedup creates a Dedup with the given TTL (<= 0 uses DedupTTL).
func NewDedup(ttl time.Duration) *Dedup {
	if ttl <= 0 {
		ttl = DedupTTL
	}
	return &Dedup{
		ttl:  ttl,
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
}

// IsDuplicate reports whether messageID was already seen within the TTL
// window. The first call records the ID and returns false; repeats within
// the window return true. Every call also evicts expired entries.
func (d *Dedup) IsDuplicate(messageID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()

	last, ok := d.seen[messageID]
	dup := ok && now.Sub(last) < d.ttl
	if !dup {
		d.seen[messageID] = now
	}

	for id, t := range d.seen {
		if now.Sub(t) >= d.ttl {
			delete(d.seen, id)
		}
	}

	return dup
}
