package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jonboulle/clockwork"
)

// Deduper remembers recently sent notifications for a fixed window. The LRU
// bounds memory; the first-seen time decides whether an entry is still live.
type Deduper struct {
	mu      sync.Mutex
	entries *expirable.LRU[string, time.Time]
	ttl     time.Duration
	clock   clockwork.Clock
}

// NewDeduper creates a store holding at most size keys for ttl
func NewDeduper(size int, ttl time.Duration, clock clockwork.Clock) *Deduper {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Deduper{
		entries: expirable.NewLRU[string, time.Time](size, nil, ttl),
		ttl:     ttl,
		clock:   clock,
	}
}

// Key identifies a notification for deduplication
func Key(n *Notification) string {
	return strings.Join([]string{n.Kind, n.Callsign, n.Title, n.Body}, "|")
}

// Check records n and returns ErrDuplicate when the same notification was
// recorded within the window
func (d *Deduper) Check(n *Notification) error {
	key := Key(n)
	now := d.clock.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if seen, ok := d.entries.Get(key); ok && now.Sub(seen) < d.ttl {
		return ErrDuplicate
	}
	d.entries.Add(key, now)
	return nil
}

// Forget drops n so it can be sent again
func (d *Deduper) Forget(n *Notification) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries.Remove(Key(n))
}

// Len returns the number of remembered keys
func (d *Deduper) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries.Len()
}
