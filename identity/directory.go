package identity

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"

	"github.com/onnwee/chat-overlay/config"
)

// Team is the affiliation record handed to the renderer.
type Team struct {
	Key   string
	Color string
	Logo  string
	Width string
}

// Directory resolves a username to a display number and a team. Resolution
// order: explicit participant entry, then the static roster tables, then a
// random fallback. Fallback values are memoized so a viewer keeps the same
// number and team for the whole session.
type Directory struct {
	norm         *Normalizer
	participants map[string]config.Participant
	numbers      map[string]int
	userTeams    map[string]string
	teams        map[string]Team
	teamKeys     []string // sorted, for deterministic indexing into the team set
	numberRange  config.NumberRange

	mu       sync.Mutex
	fallback map[string]fallbackEntry
	randInt  func(n int) int
}

type fallbackEntry struct {
	number int
	team   string
}

// NewDirectory builds a directory from the overlay document. It fails when
// the team set is empty, since the fallback path needs at least one team.
func NewDirectory(ov *config.Overlay, norm *Normalizer) (*Directory, error) {
	if len(ov.Teams) == 0 {
		return nil, fmt.Errorf("identity: empty team set")
	}
	d := &Directory{
		norm:         norm,
		participants: make(map[string]config.Participant, len(ov.Participants)),
		numbers:      make(map[string]int, len(ov.Numbers)),
		userTeams:    make(map[string]string, len(ov.UserTeams)),
		teams:        make(map[string]Team, len(ov.Teams)),
		numberRange:  ov.NumberRange,
		fallback:     make(map[string]fallbackEntry),
		randInt:      rand.Intn,
	}
	for key, t := range ov.Teams {
		d.teams[key] = Team{Key: key, Color: t.Color, Logo: t.Logo, Width: t.Width}
		d.teamKeys = append(d.teamKeys, key)
	}
	sort.Strings(d.teamKeys)
	for name, p := range ov.Participants {
		d.participants[norm.Normalize(name)] = p
	}
	for name, num := range ov.Numbers {
		d.numbers[norm.Normalize(name)] = num
	}
	for name, team := range ov.UserTeams {
		d.userTeams[norm.Normalize(name)] = team
	}
	return d, nil
}

// Number returns the display number for a username.
func (d *Directory) Number(username string) int {
	user := d.norm.Normalize(username)
	if p, ok := d.participants[user]; ok && p.Number != 0 {
		return p.Number
	}
	if n, ok := d.numbers[user]; ok {
		return n
	}
	return d.fallbackFor(user).number
}

// TeamFor returns the team record for a username.
func (d *Directory) TeamFor(username string) Team {
	user := d.norm.Normalize(username)
	if p, ok := d.participants[user]; ok && p.Team != "" {
		if t, ok := d.teams[p.Team]; ok {
			return t
		}
	}
	if key, ok := d.userTeams[user]; ok {
		if t, ok := d.teams[key]; ok {
			return t
		}
	}
	return d.teams[d.fallbackFor(user).team]
}

// AlwaysInScope reports whether the username has an explicit in-scope
// override (e.g. the primary streamer).
func (d *Directory) AlwaysInScope(username string) bool {
	p, ok := d.participants[d.norm.Normalize(username)]
	return ok && p.AlwaysInScope
}

// Avatar returns the participant's avatar resource, if configured.
func (d *Directory) Avatar(username string) string {
	if p, ok := d.participants[d.norm.Normalize(username)]; ok {
		return p.Avatar
	}
	return ""
}

// fallbackFor memoizes a random number and team for an unlisted user.
// The first lookup fixes both for the rest of the session.
func (d *Directory) fallbackFor(user string) fallbackEntry {
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.fallback[user]; ok {
		return e
	}
	span := d.numberRange.Max - d.numberRange.Min + 1
	e := fallbackEntry{
		number: d.numberRange.Min + d.randInt(span),
		team:   d.teamKeys[d.randInt(len(d.teamKeys))],
	}
	d.fallback[user] = e
	return e
}

// Roster is the ordered classification set: only senders matching one of
// its entries (case-insensitively) or carrying an explicit override get
// full treatment.
type Roster struct {
	norm    *Normalizer
	ordered []string
	index   map[string]int
}

// NewRoster normalizes the configured entries, preserving their order.
func NewRoster(entries []string, norm *Normalizer) *Roster {
	r := &Roster{
		norm:    norm,
		ordered: make([]string, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		key := norm.Normalize(strings.TrimSpace(e))
		if key == "" {
			continue
		}
		if _, dup := r.index[key]; dup {
			continue
		}
		r.index[key] = len(r.ordered)
		r.ordered = append(r.ordered, key)
	}
	return r
}

// Contains reports whether a raw username matches a roster entry.
func (r *Roster) Contains(username string) bool {
	_, ok := r.index[r.norm.Normalize(username)]
	return ok
}

// Position returns the zero-based roster position, or -1 when absent.
func (r *Roster) Position(username string) int {
	if i, ok := r.index[r.norm.Normalize(username)]; ok {
		return i
	}
	return -1
}

// Entries returns the normalized roster in configured order.
func (r *Roster) Entries() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Len returns the roster size.
func (r *Roster) Len() int { return len(r.ordered) }
