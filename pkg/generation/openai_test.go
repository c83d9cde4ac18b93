package generation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPromptFormatsObservationBlocks(t *testing.T) {
	prompt := buildPrompt(Request{
		StudentName: "Ada",
		Observations: []Observation{
			{
				ValueTag:       "Collaboration",
				AssessmentType: "FORMATIVE",
				Note:           "Shared materials with a partner",
				RecordedAt:     time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC),
			},
			{
				ValueTag:       "Perseverance",
				AssessmentType: "SUMMATIVE",
				Note:           "Retried the puzzle after two failures",
				RecordedAt:     time.Date(2026, 2, 12, 14, 0, 0, 0, time.UTC),
			},
		},
	})

	assert.Contains(t, prompt, "a student named Ada")
	assert.Contains(t, prompt, "Skill: Collaboration\nAssessment Type: FORMATIVE\nObservation: Shared materials with a partner\nDate: 2026-02-10")
	assert.Contains(t, prompt, "Skill: Perseverance\nAssessment Type: SUMMATIVE\nObservation: Retried the puzzle after two failures\nDate: 2026-02-12")
	assert.Contains(t, prompt, "approximately 300-500 words")

	// Blocks are separated by exactly one blank line.
	first := strings.Index(prompt, "Skill: Collaboration")
	second := strings.Index(prompt, "Skill: Perseverance")
	require.Greater(t, second, first)
	between := prompt[first:second]
	assert.True(t, strings.HasSuffix(between, "Date: 2026-02-10\n\n"))
}

func TestNewOpenAIGeneratorRequiresAPIKey(t *testing.T) {
	_, err := NewOpenAIGenerator(Config{})
	require.Error(t, err)
}

func TestNewOpenAIGeneratorDefaults(t *testing.T) {
	gen, err := NewOpenAIGenerator(Config{APIKey: "sk-test"})
	require.NoError(t, err)
	assert.Equal(t, "gpt-3.5-turbo", gen.cfg.Model)
	assert.Equal(t, 800, gen.cfg.MaxTokens)
	assert.InDelta(t, 0.7, gen.cfg.Temperature, 0.001)
}
