package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values can be written as "300ms", "2.5s".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Team is a UI affiliation record. Color/logo/width are passed through to
// the renderer untouched.
type Team struct {
	Color string `yaml:"color"`
	Logo  string `yaml:"logo"`
	Width string `yaml:"width"`
}

// Participant is an explicit (configured) participant entry. AlwaysInScope
// marks identities eligible for full treatment even when absent from the
// roster, e.g. the primary streamer.
type Participant struct {
	Number        int    `yaml:"number"`
	Team          string `yaml:"team"`
	Avatar        string `yaml:"avatar"`
	AlwaysInScope bool   `yaml:"always_in_scope"`
}

// NumberRange is the inclusive range for fallback display numbers.
type NumberRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// DisplayConfig holds UI-facing timings forwarded on display commands.
type DisplayConfig struct {
	MessageDuration Duration `yaml:"message_duration"`
}

// EffectConfig are the immutable audio pipeline parameters.
type EffectConfig struct {
	Enabled         bool     `yaml:"enabled"`
	PreDelay        Duration `yaml:"pre_delay"`
	HighpassHz      float64  `yaml:"highpass_hz"`
	LowpassHz       float64  `yaml:"lowpass_hz"`
	PeakHz          float64  `yaml:"peak_hz"`
	PeakGainDB      float64  `yaml:"peak_gain_db"`
	Distortion      float64  `yaml:"distortion"`
	CompThresholdDB float64  `yaml:"comp_threshold_db"`
	CompRatio       float64  `yaml:"comp_ratio"`
	StaticVolume    float64  `yaml:"static_volume"`
	StaticDuration  Duration `yaml:"static_duration"`
}

// AudioConfig selects the notification asset and overall volume.
type AudioConfig struct {
	Asset  string       `yaml:"asset"`
	Volume float64      `yaml:"volume"`
	TopN   int          `yaml:"top_n"`
	Effect EffectConfig `yaml:"effect"`
}

// Voice is a selectable TTS voice.
type Voice struct {
	Name string `yaml:"name"`
	Lang string `yaml:"lang"`
}

// TTSConfig drives the announcer queue.
type TTSConfig struct {
	Enabled       bool              `yaml:"enabled"`
	Endpoint      string            `yaml:"endpoint"`
	Language      string            `yaml:"language"`
	MaxLength     int               `yaml:"max_length"`
	CleanLength   int               `yaml:"clean_length"`
	CommandPrefix string            `yaml:"command_prefix"`
	SkipSeparator string            `yaml:"skip_separator"`
	Pause         Duration          `yaml:"pause"`
	FriendlyNames map[string]string `yaml:"friendly_names"`
	Voices        []Voice           `yaml:"voices"`
}

// MusicConfig drives the now-playing poller.
type MusicConfig struct {
	Enabled       bool     `yaml:"enabled"`
	Endpoint      string   `yaml:"endpoint"`
	Interval      Duration `yaml:"interval"`
	Timeout       Duration `yaml:"timeout"`
	IgnoreStatus  string   `yaml:"ignore_status"`
	MessagePrefix string   `yaml:"message_prefix"`
}

// Overlay is the session document: everything the overlay needs beyond env.
type Overlay struct {
	Channel         string                 `yaml:"channel"`
	PrimaryStreamer string                 `yaml:"primary_streamer"`
	Aliases         map[string]string      `yaml:"aliases"`
	Roster          []string               `yaml:"roster"`
	Teams           map[string]Team        `yaml:"teams"`
	Numbers         map[string]int         `yaml:"numbers"`
	UserTeams       map[string]string      `yaml:"user_teams"`
	Participants    map[string]Participant `yaml:"participants"`
	NumberRange     NumberRange            `yaml:"number_range"`
	BannedTerms     []string               `yaml:"banned_terms"`
	Display         DisplayConfig          `yaml:"display"`
	Audio           AudioConfig            `yaml:"audio"`
	TTS             TTSConfig              `yaml:"tts"`
	Music           MusicConfig            `yaml:"music"`
}

// LoadOverlay reads and validates the overlay document at path.
func LoadOverlay(path string) (*Overlay, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read overlay config: %w", err)
	}
	ov := &Overlay{}
	if err := yaml.Unmarshal(raw, ov); err != nil {
		return nil, fmt.Errorf("parse overlay config: %w", err)
	}
	ov.applyDefaults()
	if err := ov.Validate(); err != nil {
		return nil, fmt.Errorf("overlay config %s: %w", path, err)
	}
	return ov, nil
}

func (o *Overlay) applyDefaults() {
	if o.NumberRange.Min == 0 && o.NumberRange.Max == 0 {
		o.NumberRange = NumberRange{Min: 1, Max: 99}
	}
	if o.Display.MessageDuration == 0 {
		o.Display.MessageDuration = Duration(2500 * time.Millisecond)
	}
	if o.Audio.Volume == 0 {
		o.Audio.Volume = 1.0
	}
	if o.Audio.TopN == 0 {
		o.Audio.TopN = 15
	}
	if o.TTS.MaxLength == 0 {
		o.TTS.MaxLength = 200
	}
	if o.TTS.CleanLength == 0 {
		o.TTS.CleanLength = 150
	}
	if o.TTS.CommandPrefix == "" {
		o.TTS.CommandPrefix = "!"
	}
	if o.TTS.SkipSeparator == "" {
		o.TTS.SkipSeparator = "_"
	}
	if o.TTS.Pause == 0 {
		o.TTS.Pause = Duration(300 * time.Millisecond)
	}
	if o.TTS.Language == "" {
		o.TTS.Language = "es-ES"
	}
	if o.Music.Interval == 0 {
		o.Music.Interval = Duration(10 * time.Second)
	}
	if o.Music.Timeout == 0 {
		o.Music.Timeout = Duration(5 * time.Second)
	}
	if o.Music.MessagePrefix == "" {
		o.Music.MessagePrefix = "🎵 "
	}
}

// Validate enforces the startup invariants: a non-empty roster and at least
// one team for fallback affiliation. A silently degraded session is worse
// than a loud startup failure.
func (o *Overlay) Validate() error {
	if len(o.Roster) == 0 {
		return fmt.Errorf("roster is empty")
	}
	if len(o.Teams) == 0 {
		return fmt.Errorf("no teams defined")
	}
	if o.PrimaryStreamer == "" {
		return fmt.Errorf("primary_streamer is required")
	}
	if o.NumberRange.Min > o.NumberRange.Max {
		return fmt.Errorf("number_range min %d > max %d", o.NumberRange.Min, o.NumberRange.Max)
	}
	for name, p := range o.Participants {
		if p.Team != "" {
			if _, ok := o.Teams[p.Team]; !ok {
				return fmt.Errorf("participant %s references unknown team %q", name, p.Team)
			}
		}
	}
	for user, team := range o.UserTeams {
		if _, ok := o.Teams[team]; !ok {
			return fmt.Errorf("user_teams[%s] references unknown team %q", user, team)
		}
	}
	return nil
}
