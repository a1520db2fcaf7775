package prompts

import (
	"encoding/json"
	"fmt"
	"strings"
)

// KnownCharacter is a resolved character name injected into later enrichment prompts.
type KnownCharacter struct {
	Name    string
	Aliases []string
}

// Classify asks the model to triage a raw note.
func Classify(note string) string {
	return `Analyze the author's note below and decide which story entities it describes.

Return ONLY a JSON object of this exact shape:
{
  "category": "character" | "location" | "event" | "mixed" | "general",
  "confidence": number between 0 and 1,
  "tags": [string],
  "sectionsToProcess": {
    "characters": [{"name": string, "aliases": [string], "snippet": string, "confidence": number}],
    "locations":  [{"name": string, "snippet": string, "confidence": number}],
    "events":     [{"name": string, "snippet": string, "confidence": number}]
  },
  "relationships": [{"source": string, "target": string, "type": string, "description": string}]
}

Rules:
- "snippet" quotes the part of the note that describes the entity.
- "confidence" says how sure you are that the note really describes that entity.
- If a character has no proper name, use a descriptive role such as "Sarah's younger brother" as the name.
- Use empty arrays when a kind is absent.

Note:
<note>
` + note + `
</note>`
}

// EnrichCharacters expands the accepted character snippets into full profiles.
func EnrichCharacters(note string, items interface{}) string {
	return fmt.Sprintf(`Build complete character profiles from the author's note.

Characters to describe:
%s

Return ONLY a JSON object:
{"characters": [{"name": string, "aliases": [string], "role": string, "description": string,
  "personality": string, "appearance": string, "background": string,
  "relationships": [{"target": string, "type": string, "description": string}]}]}

Rules:
- Every character must have a non-empty "name". When the note gives no proper name, use a descriptive role such as "Sarah's younger brother".
- Use only facts stated or clearly implied by the note; leave unknown fields as "".

Note:
<note>
%s
</note>`, encodeItems(items), note)
}

// EnrichLocations expands the accepted location snippets, referring to characters by their resolved names.
func EnrichLocations(note string, items interface{}, characters []KnownCharacter) string {
	return fmt.Sprintf(`Build complete location profiles from the author's note.

Locations to describe:
%s
%s
Return ONLY a JSON object:
{"locations": [{"name": string, "type": string, "description": string, "features": [string],
  "significance": string, "associated_characters": [string]}]}

Rules:
- "associated_characters" must use the exact character names listed above, never a pronoun or role.
- Leave unknown fields as "" or [].

Note:
<note>
%s
</note>`, encodeItems(items), knownCharactersBlock(characters), note)
}

// EnrichEvents expands the accepted event snippets, referring to characters by their resolved names.
func EnrichEvents(note string, items interface{}, characters []KnownCharacter) string {
	return fmt.Sprintf(`Build complete plot point profiles from the author's note.

Events to describe:
%s
%s
Return ONLY a JSON object:
{"events": [{"name": string, "description": string, "events": [string], "impact": string,
  "connections": [string], "participants": [string]}]}

Rules:
- "participants" must use the exact character names listed above, never a pronoun or role.
- "events" lists what happens, in order.
- Leave unknown fields as "" or [].

Note:
<note>
%s
</note>`, encodeItems(items), knownCharactersBlock(characters), note)
}

func encodeItems(items interface{}) string {
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func knownCharactersBlock(characters []KnownCharacter) string {
	if len(characters) == 0 {
		return "\nKnown characters: none.\n"
	}
	var b strings.Builder
	b.WriteString("\nKnown characters (use these exact names):\n")
	for _, c := range characters {
		b.WriteString("- ")
		b.WriteString(c.Name)
		if len(c.Aliases) > 0 {
			b.WriteString(" (also called: ")
			b.WriteString(strings.Join(c.Aliases, ", "))
			b.WriteString(")")
		}
		b.WriteString("\n")
	}
	return b.String()
}
