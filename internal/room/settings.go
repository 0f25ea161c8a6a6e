package room

import (
	"fmt"
)

// AI personality presets for generated question flavor.
const (
	PersonalityFriendly = "friendly"
	PersonalitySerious  = "serious"
	PersonalityPlayful  = "playful"
)

// Per-question time limit bounds, seconds.
const (
	minTimePerQuestion = 5
	maxTimePerQuestion = 120
)

// Settings is the typed per-room configuration. Zero values mean "use the
// default"; Normalize fills them in before persistence so stored rows are
// always fully populated.
type Settings struct {
	Language         string `json:"language"`
	AIPersonality    string `json:"ai_personality"`
	TopicFocus       string `json:"topic_focus"`
	AutoAdvance      *bool  `json:"auto_advance,omitempty"`
	ShowExplanations *bool  `json:"show_explanations,omitempty"`
	TimePerQuestion  int    `json:"time_per_question"`
}

// DefaultSettings returns a fully-populated settings struct.
func DefaultSettings() Settings {
	on := true
	return Settings{
		Language:         "en",
		AIPersonality:    PersonalityFriendly,
		TopicFocus:       "general",
		AutoAdvance:      &on,
		ShowExplanations: &on,
		TimePerQuestion:  30,
	}
}

// Normalize applies defaults to unset fields.
func (s Settings) Normalize() Settings {
	defaults := DefaultSettings()
	if s.Language == "" {
		s.Language = defaults.Language
	}
	if s.AIPersonality == "" {
		s.AIPersonality = defaults.AIPersonality
	}
	if s.TopicFocus == "" {
		s.TopicFocus = defaults.TopicFocus
	}
	if s.AutoAdvance == nil {
		s.AutoAdvance = defaults.AutoAdvance
	}
	if s.ShowExplanations == nil {
		s.ShowExplanations = defaults.ShowExplanations
	}
	if s.TimePerQuestion == 0 {
		s.TimePerQuestion = defaults.TimePerQuestion
	}
	return s
}

// Validate checks a normalized settings struct.
func (s Settings) Validate() error {
	switch s.AIPersonality {
	case PersonalityFriendly, PersonalitySerious, PersonalityPlayful:
	default:
		return fmt.Errorf("unknown ai_personality %q", s.AIPersonality)
	}
	if s.TimePerQuestion < minTimePerQuestion || s.TimePerQuestion > maxTimePerQuestion {
		return fmt.Errorf("time_per_question must be between %d and %d seconds", minTimePerQuestion, maxTimePerQuestion)
	}
	return nil
}

// AutoAdvanceEnabled reports the effective auto-advance flag.
func (s Settings) AutoAdvanceEnabled() bool {
	return s.AutoAdvance != nil && *s.AutoAdvance
}

// ExplanationsVisible reports whether explanations are shown to players.
func (s Settings) ExplanationsVisible() bool {
	return s.ShowExplanations != nil && *s.ShowExplanations
}
