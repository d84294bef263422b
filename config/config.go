// Package config loads environment variables and the overlay YAML document,
// and provides the typed session configuration used across the service.
// Env knobs cover process-level concerns (addresses, intervals); the YAML
// document carries the session data: roster, aliases, participants, teams,
// banned terms and the audio effect chain. Everything loaded here is
// read-only for the remainder of the session.
package config

import (
	"fmt"
	"os"
	"time"
)

type Config struct {
	// Twitch
	TwitchChannel string

	// HTTP surface (health/status/metrics/events)
	HTTPAddr string

	// Overlay document path
	OverlayFile string

	// Periodic scheduler tick (day rollover, top-chatter refresh)
	TickInterval time.Duration

	Overlay *Overlay
}

// Load reads environment variables, applies defaults and parses the overlay
// document. It fails when the overlay document is missing or invalid; a
// session without a roster cannot run meaningfully (see Overlay.Validate).
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.TwitchChannel = os.Getenv("TWITCH_CHANNEL")

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.OverlayFile = os.Getenv("OVERLAY_CONFIG")
	if cfg.OverlayFile == "" {
		cfg.OverlayFile = "overlay.yaml"
	}

	cfg.TickInterval = 10 * time.Second
	if v := os.Getenv("SCHEDULER_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SCHEDULER_TICK_INTERVAL: %q", v)
		}
		cfg.TickInterval = d
	}

	ov, err := LoadOverlay(cfg.OverlayFile)
	if err != nil {
		return nil, err
	}
	cfg.Overlay = ov

	if cfg.TwitchChannel == "" {
		cfg.TwitchChannel = ov.Channel
	}

	return cfg, nil
}

// ValidateChatReady checks the fields required to join chat.
func (c *Config) ValidateChatReady() error {
	if c.TwitchChannel == "" {
		return fmt.Errorf("missing twitch channel: set TWITCH_CHANNEL or channel in %s", c.OverlayFile)
	}
	return nil
}
