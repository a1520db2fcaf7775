package prompts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/models"
)

func TestTransformPrompt(t *testing.T) {
	p, err := Transform(models.TransformationRequest{
		Text:                   "The city was quiet.",
		Action:                 models.ActionExpand,
		AdditionalInstructions: "  make it ominous ",
		FullDocument:           "Chapter one. The city was quiet.",
	})
	require.NoError(t, err)

	assert.Contains(t, p, "<selection>\nThe city was quiet.\n</selection>")
	assert.Contains(t, p, "make it ominous")
	assert.Contains(t, p, "<document>\nChapter one. The city was quiet.\n</document>")
	assert.Less(t, strings.Index(p, "<document>"), strings.Index(p, "<selection>"))

	p, err = Transform(models.TransformationRequest{Text: "x", Action: models.ActionRevise})
	require.NoError(t, err)
	assert.NotContains(t, p, "<document>")
	assert.NotContains(t, p, "Additional instructions")

	_, err = Transform(models.TransformationRequest{Text: "x", Action: "translate"})
	assert.Error(t, err)
}

func TestEveryActionHasInstruction(t *testing.T) {
	for _, a := range models.TransformActions {
		s, ok := ActionInstruction(a)
		assert.True(t, ok, a)
		assert.NotEmpty(t, s)
	}
}

func TestGeneratePrompt(t *testing.T) {
	note := Generate(models.ContentNote, "CHAPTER: One", "")
	assert.Contains(t, note, `{"title": string, "content": string}`)
	assert.NotContains(t, note, "<current>")

	text := Generate(models.ContentText, "CHAPTER: One", "She opened the door")
	assert.Contains(t, text, "<current>\nShe opened the door\n</current>")
	assert.NotContains(t, text, "TITLE:")
}

func TestEnrichmentInjectsCharacterNames(t *testing.T) {
	items := []models.ExtractedLocation{{Name: "Thornwood", Confidence: 0.85}}
	p := EnrichLocations("Sarah grew up in Thornwood.", items, []KnownCharacter{{Name: "Sarah", Aliases: []string{"Sare"}}})

	assert.Contains(t, p, "- Sarah (also called: Sare)")
	assert.Contains(t, p, `"name": "Thornwood"`)

	p = EnrichEvents("A storm.", []models.ExtractedEvent{{Name: "The storm"}}, nil)
	assert.Contains(t, p, "Known characters: none.")
}
