// Package signal standardizes payloads shared between ingestion adapters and the strategy layer.
package signal

import (
	"strings"
	"time"
)

// Platform names the venue a signal was captured from.
type Platform string

const (
	PlatformUnknown  Platform = "unknown"
	PlatformMock     Platform = "mock"
	PlatformTelegram Platform = "telegram"
	PlatformDiscord  Platform = "discord"
	PlatformTwitter  Platform = "twitter"
	PlatformHelius   Platform = "helius"
	// PlatformScreener marks tokens surfaced by pair discovery rather than a social post.
	PlatformScreener Platform = "dexscreener"
)

// ParsePlatform maps free-form platform names onto the known set.
func ParsePlatform(raw string) Platform {
	switch p := Platform(strings.ToLower(strings.TrimSpace(raw))); p {
	case PlatformMock, PlatformTelegram, PlatformDiscord, PlatformTwitter, PlatformHelius, PlatformScreener:
		return p
	default:
		return PlatformUnknown
	}
}

// Signal is a single mention of a token captured by an ingestion adapter.
// Score is written by the fusion memory; everything else is set once by the producer.
type Signal struct {
	Platform   Platform  `json:"platform"`
	Type       string    `json:"type,omitempty"`
	Source     string    `json:"source"`
	Content    string    `json:"content,omitempty"`
	Mentions   []string  `json:"mentions,omitempty"`
	Confidence float64   `json:"confidence"`
	Ts         time.Time `json:"ts"`
	ID         string    `json:"id,omitempty"`
	Contract   string    `json:"contract,omitempty"`
	Symbol     string    `json:"symbol,omitempty"`
	Caller     string    `json:"caller,omitempty"`
	URL        string    `json:"url,omitempty"`
	Score      float64   `json:"score"`
}

// Normalize fills defaults and clamps confidence into [0,1].
func (s *Signal) Normalize(now time.Time) {
	s.Platform = ParsePlatform(string(s.Platform))
	if s.Type == "" {
		s.Type = "social"
	}
	if s.Ts.IsZero() {
		s.Ts = now
	}
	switch {
	case s.Confidence < 0:
		s.Confidence = 0
	case s.Confidence > 1:
		s.Confidence = 1
	}
	s.Contract = strings.TrimSpace(s.Contract)
}

// HasContract reports whether the signal references a token address.
func (s *Signal) HasContract() bool { return s.Contract != "" }
