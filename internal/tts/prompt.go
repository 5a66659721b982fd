package tts

import (
	"fmt"
	"strings"
)

const promptTemplate = `System Instruction:
- Role: Professional Anime Voice Actor.
- %s
- Language Context: %s
- Performance Cues:
  [laugh] = A hearty, character-specific laugh.
  [serious] = Lower pitch, cold determination, slow pacing.
  [angry] = Sharp, loud, shouting with intensity.
  [sad] = Quavering voice, softer, emotional.
  [whisper] = Close to the mic, breathy, secretive.
  [silent] = A distinct pause in narration.

Perform the following script with maximum theatrical energy:
%s
`

// LanguageInstruction returns the delivery instruction for a language id.
// Unknown ids get the English instruction.
func LanguageInstruction(language string) string {
	switch language {
	case "hi":
		return "Perform in pure Hindi."
	case "ja":
		return "Perform in authentic Japanese."
	case "hinglish":
		return "Perform in casual Hinglish."
	default:
		return "Perform in high-energy English."
	}
}

// CharacterProfile returns the character direction for a voice id.
func CharacterProfile(voice string) string {
	if voice == "Kore" {
		return "Character: A high-energy teenage ninja. Tone: Raspy, determined, youthful, and slightly scratchy. Think 'Uzumaki' spirit."
	}
	return "Character: Dramatic anime male archetype."
}

// BuildPrompt wraps a script in the voice-acting instructions sent to the
// speech model.
func BuildPrompt(text, voice, language string) string {
	return fmt.Sprintf(promptTemplate,
		CharacterProfile(voice),
		LanguageInstruction(language),
		strings.TrimSpace(text),
	)
}
