package prompts

import (
	"strings"

	"github.com/Corphon/SceneScribe/internal/models"
)

// Generate builds the prompt for freeform generation at the caret.
// chapterContext is the fully assembled chapter block.
func Generate(kind models.ContentKind, chapterContext, currentContent string) string {
	var b strings.Builder
	b.WriteString("You are a co-writer helping an author continue their novel.\n\n")
	b.WriteString(chapterContext)
	b.WriteString("\n")

	if cur := strings.TrimSpace(currentContent); cur != "" {
		b.WriteString("\nText written so far at the cursor:\n<current>\n")
		b.WriteString(cur)
		b.WriteString("\n</current>\n")
	}

	switch kind {
	case models.ContentNote:
		b.WriteString("\nWrite one concise planning note for this chapter: an idea, open thread or reminder the author should consider next.\n")
		b.WriteString(structuredSuffix)
	case models.ContentBeat:
		b.WriteString("\nWrite the next story beat for this chapter: one short paragraph describing what happens next, consistent with the beats above.\n")
		b.WriteString(structuredSuffix)
	default:
		b.WriteString("\nContinue the prose from the cursor for one or two paragraphs in the author's voice. Reply with the prose only.")
	}
	return b.String()
}

const structuredSuffix = `Reply with a JSON object {"title": string, "content": string}.
If you cannot produce JSON, use exactly this format:
TITLE: <title>
CONTENT: <content>`
