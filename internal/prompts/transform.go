// Package prompts holds the prompt text shared by the server services and the editor preview.
package prompts

import (
	"fmt"
	"strings"

	"github.com/Corphon/SceneScribe/internal/models"
)

var actionInstructions = map[models.TransformAction]string{
	models.ActionExpand:    "Expand the selected passage. Add sensory detail, interiority and pacing so it reads roughly twice as long, keeping the author's voice and tense.",
	models.ActionSummarize: "Condense the selected passage to its essential beats in at most half of its length. Keep names and tense unchanged.",
	models.ActionRephrase:  "Rephrase the selected passage with fresh wording. Keep its meaning, length and tone.",
	models.ActionRevise:    "Revise the selected passage for clarity, grammar and flow. Keep the author's voice and do not add new events.",
}

// ActionInstruction returns the instruction for a transform action.
func ActionInstruction(action models.TransformAction) (string, bool) {
	s, ok := actionInstructions[action]
	return s, ok
}

// Transform builds the model prompt for a selection transform.
func Transform(req models.TransformationRequest) (string, error) {
	instruction, ok := ActionInstruction(req.Action)
	if !ok {
		return "", fmt.Errorf("unsupported action %q", req.Action)
	}

	var b strings.Builder
	b.WriteString("You are an experienced fiction editor working inside the author's manuscript.\n")
	b.WriteString(instruction)
	b.WriteString("\n")

	if extra := strings.TrimSpace(req.AdditionalInstructions); extra != "" {
		b.WriteString("\nAdditional instructions from the author:\n")
		b.WriteString(extra)
		b.WriteString("\n")
	}

	if doc := strings.TrimSpace(req.FullDocument); doc != "" {
		b.WriteString("\nThe full document, for tone and continuity only (do not rewrite it):\n<document>\n")
		b.WriteString(doc)
		b.WriteString("\n</document>\n")
	}

	b.WriteString("\nSelected passage:\n<selection>\n")
	b.WriteString(req.Text)
	b.WriteString("\n</selection>\n\n")
	b.WriteString("Reply with the replacement text only. No preamble, no quotes, no markdown.")
	return b.String(), nil
}
