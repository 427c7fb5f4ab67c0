package debounce

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/leadrail/leadrail/pkg/logging"
)

// DefaultQuiet is the quiet period a contact must stay silent before their
// buffered fragments are flushed as one logical message.
const DefaultQuiet = 8 * time.Second

// FlushFunc receives the coalesced text for a contact once their quiet period
// elapses.
type FlushFunc func(ctx context.Context, contactKey string, combined string)

type entry struct {
	fragments []string
	timer     *time.Timer
	// gen increments on every Add. A timer callback that lost the Stop race
	// carries a stale gen and must not flush the restarted buffer.
	gen uint64
}

// Debouncer buffers rapid successive text fragments per contact and hands the
// concatenation to the next stage after a fixed quiet period. Each contact has
// an independent timer; adding a fragment cancels and restarts it, so only one
// timer is ever live per contact. Buffers live in memory only: fragments
// pending at process restart are lost. That is a documented limitation, not a
// bug to fix silently.
type Debouncer struct {
	mu      sync.Mutex
	entries map[string]*entry
	quiet   time.Duration
	flush   FlushFunc
	logger  *logging.Logger
}

func New(quiet time.Duration, flush FlushFunc, logger *logging.Logger) *Debouncer {
	if flush == nil {
		panic("debounce: flush func required")
	}
	if quiet <= 0 {
		quiet = DefaultQuiet
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Debouncer{
		entries: make(map[string]*entry),
		quiet:   quiet,
		flush:   flush,
		logger:  logger,
	}
}

// Add appends a fragment to the contact's buffer and restarts their quiet
// timer. Safe for concurrent use across contacts; same-contact calls
// serialize on the mutex.
func (d *Debouncer) Add(ctx context.Context, contactKey, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	e, ok := d.entries[contactKey]
	if !ok {
		e = &entry{}
		d.entries[contactKey] = e
	}
	e.fragments = append(e.fragments, text)
	e.gen++

	if e.timer != nil {
		e.timer.Stop()
	}
	gen := e.gen
	e.timer = time.AfterFunc(d.quiet, func() {
		d.fire(ctx, contactKey, gen)
	})
	d.logger.Debug("fragment buffered", "contact", contactKey, "pending", len(e.fragments))
}

// Flush drains a contact's buffer immediately, bypassing the timer. Used by
// tests and by shutdown paths that prefer an early reply over a dropped one.
func (d *Debouncer) Flush(ctx context.Context, contactKey string) {
	d.mu.Lock()
	e, ok := d.entries[contactKey]
	if !ok {
		d.mu.Unlock()
		return
	}
	d.fireLocked(ctx, contactKey, e)
}

// Pending reports how many fragments are buffered for a contact.
func (d *Debouncer) Pending(contactKey string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.entries[contactKey]; ok {
		return len(e.fragments)
	}
	return 0
}

// fire is the timer callback. Timer.Stop cannot guarantee an already-started
// callback was cancelled; the gen check makes a superseded callback a no-op
// so a fragment added in that window is never flushed twice or split across
// two flushes.
func (d *Debouncer) fire(ctx context.Context, contactKey string, gen uint64) {
	d.mu.Lock()
	e, ok := d.entries[contactKey]
	if !ok || e.gen != gen {
		d.mu.Unlock()
		return
	}
	d.fireLocked(ctx, contactKey, e)
}

// fireLocked drains the entry and runs the flush. Caller holds d.mu; the lock
// is released before the flush callback runs.
func (d *Debouncer) fireLocked(ctx context.Context, contactKey string, e *entry) {
	if len(e.fragments) == 0 {
		d.mu.Unlock()
		return
	}
	combined := strings.Join(e.fragments, "\n")
	if e.timer != nil {
		e.timer.Stop()
	}
	delete(d.entries, contactKey)
	d.mu.Unlock()

	// The timer fires after the originating request has completed, so its
	// context is already canceled. Flush must outlive it.
	d.flush(context.WithoutCancel(ctx), contactKey, combined)
}
