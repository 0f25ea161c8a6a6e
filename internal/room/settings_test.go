package room

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	s := Settings{}.Normalize()

	assert.Equal(t, "en", s.Language)
	assert.Equal(t, PersonalityFriendly, s.AIPersonality)
	assert.Equal(t, "general", s.TopicFocus)
	assert.Equal(t, 30, s.TimePerQuestion)
	assert.True(t, s.AutoAdvanceEnabled())
	assert.True(t, s.ExplanationsVisible())
}

func TestNormalizePreservesExplicitValues(t *testing.T) {
	off := false
	s := Settings{
		Language:        "de",
		AIPersonality:   PersonalitySerious,
		TopicFocus:      "history",
		AutoAdvance:     &off,
		TimePerQuestion: 45,
	}.Normalize()

	assert.Equal(t, "de", s.Language)
	assert.Equal(t, PersonalitySerious, s.AIPersonality)
	assert.Equal(t, "history", s.TopicFocus)
	assert.Equal(t, 45, s.TimePerQuestion)
	assert.False(t, s.AutoAdvanceEnabled(), "explicit false must survive normalization")
	assert.True(t, s.ExplanationsVisible(), "unset flag still defaults on")
}

func TestValidateBounds(t *testing.T) {
	require.NoError(t, Settings{}.Normalize().Validate())

	s := Settings{TimePerQuestion: 4}.Normalize()
	assert.Error(t, s.Validate())

	s = Settings{TimePerQuestion: 121}.Normalize()
	assert.Error(t, s.Validate())

	s = Settings{TimePerQuestion: 5}.Normalize()
	assert.NoError(t, s.Validate())

	s = Settings{TimePerQuestion: 120}.Normalize()
	assert.NoError(t, s.Validate())
}

func TestValidatePersonality(t *testing.T) {
	s := Settings{AIPersonality: "sassy"}.Normalize()
	assert.Error(t, s.Validate())

	for _, p := range []string{PersonalityFriendly, PersonalitySerious, PersonalityPlayful} {
		s := Settings{AIPersonality: p}.Normalize()
		assert.NoError(t, s.Validate())
	}
}
