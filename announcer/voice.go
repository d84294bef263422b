package announcer

import "strings"

// Voice identifies a synthesizer voice by name and BCP 47 language tag.
type Voice struct {
	Name string
	Lang string
}

// SelectVoice picks the best voice for a language tag: exact locale match
// first, then same language family (es-ES matches es-MX), then the first
// voice as fallback. Returns the zero Voice when the list is empty, which
// synthesizers treat as "engine default".
func SelectVoice(voices []Voice, lang string) Voice {
	if len(voices) == 0 {
		return Voice{}
	}
	want := strings.ToLower(lang)
	family := want
	if i := strings.IndexAny(want, "-_"); i > 0 {
		family = want[:i]
	}
	var familyMatch *Voice
	for i := range voices {
		got := strings.ToLower(strings.ReplaceAll(voices[i].Lang, "_", "-"))
		if got == want {
			return voices[i]
		}
		if familyMatch == nil && strings.HasPrefix(got, family) {
			familyMatch = &voices[i]
		}
	}
	if familyMatch != nil {
		return *familyMatch
	}
	return voices[0]
}
