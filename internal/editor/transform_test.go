package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/SceneScribe/internal/models"
)

type titleField struct{}

func (titleField) FullDocument() (string, bool) { return "", false }

func TestBuildTransformRequest(t *testing.T) {
	ta := NewTextArea("Once. The city was quiet. Then.", Rect{W: 400, H: 100}, testStyle())

	req := BuildTransformRequest("The city was quiet.", models.ActionExpand, "", ta)
	assert.Equal(t, models.TransformationRequest{
		Text:         "The city was quiet.",
		Action:       models.ActionExpand,
		FullDocument: "Once. The city was quiet. Then.",
	}, req)

	req = BuildTransformRequest("Title", models.ActionRephrase, "shorter", titleField{})
	assert.Empty(t, req.FullDocument)
	assert.Equal(t, "shorter", req.AdditionalInstructions)

	req = BuildTransformRequest("x", models.ActionRevise, "", nil)
	assert.Empty(t, req.FullDocument)
}

func TestBuildTransformRequestUnknownActionPanics(t *testing.T) {
	assert.Panics(t, func() {
		BuildTransformRequest("x", models.TransformAction("translate"), "", nil)
	})
}

func TestPreviewPrompt(t *testing.T) {
	req := BuildTransformRequest("The city was quiet.", models.ActionSummarize, "keep it dark", nil)
	prompt, err := PreviewPrompt(req)
	require.NoError(t, err)
	assert.Contains(t, prompt, "<selection>\nThe city was quiet.\n</selection>")
	assert.Contains(t, prompt, "keep it dark")
	assert.NotContains(t, prompt, "<document>")
}
