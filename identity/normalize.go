// Package identity canonicalizes usernames and resolves participants to
// their display number and team affiliation.
package identity

import "strings"

// Normalizer lower-cases usernames and applies a static alias table, so
// that multiple raw spellings of the same viewer collapse to one key.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer copies the alias table. Alias keys are matched after
// lower-casing, so the table itself may be written in any case.
func NewNormalizer(aliases map[string]string) *Normalizer {
	n := &Normalizer{aliases: make(map[string]string, len(aliases))}
	for raw, canonical := range aliases {
		n.aliases[strings.ToLower(raw)] = strings.ToLower(canonical)
	}
	return n
}

// Normalize returns the canonical form of a username.
func (n *Normalizer) Normalize(raw string) string {
	lower := strings.ToLower(raw)
	if canonical, ok := n.aliases[lower]; ok {
		return canonical
	}
	return lower
}

// Equal reports whether two raw usernames refer to the same identity.
func (n *Normalizer) Equal(a, b string) bool {
	return n.Normalize(a) == n.Normalize(b)
}
