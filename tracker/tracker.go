// Package tracker keeps per-user chat activity for the current session:
// daily message counters, a trailing five-minute activity window, and the
// current top chatter. Counters reset when the local calendar day rolls
// over; the rollover is evaluated on every tracked event and on the
// periodic scheduler tick, whichever comes first.
package tracker

import (
	"sync"
	"time"
)

// Window is the trailing interval used to measure recent activity.
const Window = 5 * time.Minute

type record struct {
	timestamps []time.Time
	daily      int
}

// Tracker is safe for concurrent use. The zero value is not usable; use New.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	records map[string]*record
	order   []string // first-seen order, the deterministic tie-break policy
	day     string
	top     string
	topN    int
	total   int64

	onRollover func()
}

// New returns an empty tracker using the wall clock.
func New() *Tracker {
	return NewWithClock(time.Now)
}

// NewWithClock injects the clock, for tests and for deterministic replays.
func NewWithClock(now func() time.Time) *Tracker {
	t := &Tracker{now: now, records: make(map[string]*record)}
	t.day = dayKey(now())
	return t
}

// OnRollover registers a callback fired (outside the tracker lock) after a
// day-boundary reset, so the caller can clear any top-chatter marker.
func (t *Tracker) OnRollover(fn func()) {
	t.mu.Lock()
	t.onRollover = fn
	t.mu.Unlock()
}

func dayKey(ts time.Time) string {
	return ts.Local().Format("2006-01-02")
}

// Track records a message from username at the current instant. In-scope
// messages count toward the daily total and the top-chatter title; every
// message counts toward the session-global total and the activity window.
func (t *Tracker) Track(username string, inScope bool) {
	t.mu.Lock()
	now := t.now()
	fired := t.rolloverLocked(now)

	rec, ok := t.records[username]
	if !ok {
		rec = &record{}
		t.records[username] = rec
		t.order = append(t.order, username)
	}
	rec.timestamps = append(rec.timestamps, now)
	rec.prune(now)

	t.total++
	if inScope {
		rec.daily++
		// Strictly-greater only: the earliest user to attain a count keeps
		// the title on ties.
		if t.top == "" || (username != t.top && rec.daily > t.topN) {
			t.top = username
			t.topN = rec.daily
		} else if username == t.top {
			t.topN = rec.daily
		}
	}
	cb := t.onRollover
	t.mu.Unlock()

	if fired && cb != nil {
		cb()
	}
}

// Tick re-evaluates time-derived state; the caller drives it on a fixed
// cadence (10 seconds in production).
func (t *Tracker) Tick() {
	t.mu.Lock()
	fired := t.rolloverLocked(t.now())
	cb := t.onRollover
	t.mu.Unlock()

	if fired && cb != nil {
		cb()
	}
}

// rolloverLocked clears daily state when the local date changed. Reports
// whether a rollover happened. Caller holds t.mu.
func (t *Tracker) rolloverLocked(now time.Time) bool {
	key := dayKey(now)
	if key == t.day {
		return false
	}
	t.day = key
	t.top = ""
	t.topN = 0
	t.total = 0
	for _, rec := range t.records {
		rec.daily = 0
	}
	return true
}

// TopChatter returns the current top chatter, or "" when none.
func (t *Tracker) TopChatter() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.top
}

// DailyCount returns today's in-scope message count for username; 0 for
// unseen users.
func (t *Tracker) DailyCount(username string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[username]; ok {
		return rec.daily
	}
	return 0
}

// Total returns the session's message count for the current day, in or out
// of scope.
func (t *Tracker) Total() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// RecentActiveUser returns the allowed user with the most messages inside
// the trailing window, or "" when nobody qualifies. Ties resolve to the
// user seen first in the session (first-seen insertion order), so the
// answer does not depend on map iteration.
func (t *Tracker) RecentActiveUser(allowed map[string]bool) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	best := ""
	bestCount := 0
	for _, user := range t.order {
		if !allowed[user] {
			continue
		}
		rec := t.records[user]
		rec.prune(now)
		if n := len(rec.timestamps); n > bestCount {
			best = user
			bestCount = n
		}
	}
	return best
}

// prune drops timestamps older than the window. Amortized O(1) per Track
// since each timestamp is appended and removed once.
func (r *record) prune(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(r.timestamps) && !r.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.timestamps = append(r.timestamps[:0], r.timestamps[i:]...)
	}
}
