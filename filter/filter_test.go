package filter

import (
	"strings"
	"testing"
)

func TestCleanStripsURLsLaughterAndXD(t *testing.T) {
	f := New(nil, 150)
	got := f.Clean("check this http://x.co jajaja    xd")
	if strings.Contains(got, "http") || strings.Contains(got, "x.co") {
		t.Errorf("URL survived cleaning: %q", got)
	}
	if strings.Contains(strings.ToLower(got), "jaja") {
		t.Errorf("laughter survived cleaning: %q", got)
	}
	if strings.Contains(strings.ToLower(got), "xd") {
		t.Errorf("xd token survived cleaning: %q", got)
	}
	if got != "check this" {
		t.Errorf("Clean = %q, want %q", got, "check this")
	}
}

func TestCleanTable(t *testing.T) {
	f := New(nil, 150)
	cases := []struct{ in, want string }{
		{"hola KEKW que tal", "hola que tal"},
		{"me parto jejejeje", "me parto"},
		{"buenas :) ;D", "buenas"},
		{"holaaaaa", "holaa"},
		{"holaaa", "holaaa"}, // runs of three pass through
		{"que 🏎️ carrera 🔥", "que carrera"},
		{"   varios    espacios   ", "varios espacios"},
		{"xDDDD jaja www.spam.tv", ""},
	}
	for _, tc := range cases {
		if got := f.Clean(tc.in); got != tc.want {
			t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCleanTruncates(t *testing.T) {
	f := New(nil, 10)
	got := f.Clean("abcdefghijklmnop")
	if got != "abcdefghij…" {
		t.Errorf("Clean = %q, want truncated with ellipsis", got)
	}
}

func TestIsBannedAccentInsensitive(t *testing.T) {
	f := New([]string{"canción"}, 150)
	for _, text := range []string{
		"vaya canción",
		"vaya cancion",
		"VAYA CANCIÓN",
		"vaya CANCION señores",
	} {
		if !f.IsBanned(text) {
			t.Errorf("IsBanned(%q) = false, want true", text)
		}
	}
}

func TestIsBannedWholeWordOnly(t *testing.T) {
	f := New([]string{"pato"}, 150)
	if !f.IsBanned("menudo pato") {
		t.Error("whole word should match")
	}
	for _, text := range []string{"zapatos nuevos", "patoso total", "empatopa"} {
		if f.IsBanned(text) {
			t.Errorf("IsBanned(%q) = true, want false (substring of longer word)", text)
		}
	}
}

func TestIsBannedEmptyList(t *testing.T) {
	f := New(nil, 150)
	if f.IsBanned("anything at all") {
		t.Error("empty denylist should never match")
	}
}

func TestFold(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Canción", "cancion"},
		{"PÉSIMO", "pesimo"},
		{"üñâ", "una"},
		{"plain", "plain"},
	}
	for _, tc := range cases {
		if got := Fold(tc.in); got != tc.want {
			t.Errorf("Fold(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
