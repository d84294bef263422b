package identity

import (
	"testing"

	"github.com/onnwee/chat-overlay/config"
)

func TestNormalizeLowercases(t *testing.T) {
	n := NewNormalizer(nil)
	for _, tc := range []struct{ in, want string }{
		{"TestUser", "testuser"},
		{"ALLCAPS", "allcaps"},
		{"already_lower", "already_lower"},
	} {
		if got := n.Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeAliases(t *testing.T) {
	n := NewNormalizer(map[string]string{"c_h_a_n_d_a_l_f": "chandalf"})
	if got := n.Normalize("c_h_a_n_d_a_l_f"); got != "chandalf" {
		t.Errorf("alias lookup = %q", got)
	}
	// Alias resolution is invariant to input casing.
	if got := n.Normalize("C_H_A_N_D_A_L_F"); got != "chandalf" {
		t.Errorf("cased alias lookup = %q", got)
	}
	if !n.Equal("C_h_a_n_d_a_l_f", "CHANDALF") {
		t.Error("Equal should match alias to canonical target")
	}
}

func testOverlay() *config.Overlay {
	return &config.Overlay{
		Channel:         "liiukiin",
		PrimaryStreamer: "liiukiin",
		Roster:          []string{"ALPHA", "BETA"},
		Teams: map[string]config.Team{
			"mercedes": {Color: "#00D2BE"},
			"ferrari":  {Color: "#DC0000"},
		},
		Numbers:   map[string]int{"alpha": 4, "beta": 7},
		UserTeams: map[string]string{"alpha": "ferrari"},
		Participants: map[string]config.Participant{
			"liiukiin": {Number: 63, Team: "mercedes", AlwaysInScope: true},
		},
		NumberRange: config.NumberRange{Min: 1, Max: 99},
	}
}

func TestDirectoryResolutionOrder(t *testing.T) {
	norm := NewNormalizer(nil)
	d, err := NewDirectory(testOverlay(), norm)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if got := d.Number("Liiukiin"); got != 63 {
		t.Errorf("explicit participant number = %d, want 63", got)
	}
	if got := d.TeamFor("LIIUKIIN"); got.Key != "mercedes" {
		t.Errorf("explicit participant team = %q, want mercedes", got.Key)
	}
	if got := d.Number("Alpha"); got != 4 {
		t.Errorf("roster table number = %d, want 4", got)
	}
	if got := d.TeamFor("alpha"); got.Key != "ferrari" {
		t.Errorf("roster table team = %q, want ferrari", got.Key)
	}
	if !d.AlwaysInScope("LIIUKIIN") || d.AlwaysInScope("alpha") {
		t.Error("AlwaysInScope should only hold for the override entry")
	}
}

func TestDirectoryFallbackIsStable(t *testing.T) {
	norm := NewNormalizer(nil)
	d, err := NewDirectory(testOverlay(), norm)
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	seq := []int{41, 1, 12, 0, 7, 1}
	i := 0
	d.randInt = func(n int) int {
		v := seq[i%len(seq)] % n
		i++
		return v
	}

	num := d.Number("gamma")
	team := d.TeamFor("gamma")
	if num < 1 || num > 99 {
		t.Fatalf("fallback number %d out of range", num)
	}
	// Repeated lookups must not regenerate.
	for range 5 {
		if got := d.Number("GAMMA"); got != num {
			t.Fatalf("fallback number changed: %d -> %d", num, got)
		}
		if got := d.TeamFor("gamma"); got.Key != team.Key {
			t.Fatalf("fallback team changed: %q -> %q", team.Key, got.Key)
		}
	}
}

func TestDirectoryFallbackBounds(t *testing.T) {
	ov := testOverlay()
	ov.NumberRange = config.NumberRange{Min: 10, Max: 10}
	d, err := NewDirectory(ov, NewNormalizer(nil))
	if err != nil {
		t.Fatalf("NewDirectory: %v", err)
	}
	if got := d.Number("somebody"); got != 10 {
		t.Errorf("degenerate range number = %d, want 10", got)
	}
}

func TestDirectoryEmptyTeams(t *testing.T) {
	ov := testOverlay()
	ov.Teams = nil
	if _, err := NewDirectory(ov, NewNormalizer(nil)); err == nil {
		t.Fatal("expected error for empty team set")
	}
}

func TestRoster(t *testing.T) {
	norm := NewNormalizer(map[string]string{"c_h_a_n_d_a_l_f": "chandalf"})
	r := NewRoster([]string{"ALPHA", "Beta", " chandalf ", "alpha"}, norm)
	if r.Len() != 3 {
		t.Fatalf("roster len = %d, want 3 (dedup + trim)", r.Len())
	}
	if !r.Contains("alpha") || !r.Contains("ALPHA") {
		t.Error("Contains should be case-insensitive")
	}
	if !r.Contains("C_H_A_N_D_A_L_F") {
		t.Error("Contains should resolve aliases")
	}
	if r.Contains("gamma") {
		t.Error("Contains should reject unlisted users")
	}
	if got := r.Position("beta"); got != 1 {
		t.Errorf("Position(beta) = %d, want 1", got)
	}
	if got := r.Position("nobody"); got != -1 {
		t.Errorf("Position(nobody) = %d, want -1", got)
	}
}
