package tts

// Voice is a selectable voice profile.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PreviewText string `json:"preview_text"`
}

// Language is a selectable performance language.
type Language struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Flag        string `json:"flag"`
	Description string `json:"description"`
}

// Voices lists the prebuilt Gemini voices offered to callers.
var Voices = []Voice{
	{
		ID:          "Kore",
		Name:        "The Hero (Kore)",
		Description: "Youthful, high energy male voice.",
		PreviewText: "Believe it! I'm going to be the greatest ninja ever!",
	},
	{
		ID:          "Charon",
		Name:        "The Mentor (Charon)",
		Description: "Deep, calm, and authoritative male voice.",
		PreviewText: "Concentrate your energy. The real battle starts now.",
	},
	{
		ID:          "Fenrir",
		Name:        "The Rival (Fenrir)",
		Description: "Cool, detached, and slightly edgy male voice.",
		PreviewText: "Hmph. You're still weak. Train harder.",
	},
	{
		ID:          "Zephyr",
		Name:        "The Ally (Zephyr)",
		Description: "Friendly and reliable standard male voice.",
		PreviewText: "Don't worry, I've got your back no matter what!",
	},
}

// Languages lists the supported performance languages.
var Languages = []Language{
	{ID: "en", Name: "English", Flag: "🇺🇸", Description: "Standard English"},
	{ID: "hi", Name: "Hindi", Flag: "🇮🇳", Description: "Native Hindi accent"},
	{ID: "ja", Name: "Japanese", Flag: "🇯🇵", Description: "Original Anime feel"},
	{ID: "hinglish", Name: "Hinglish", Flag: "🇮🇳🇺🇸", Description: "Mix of Hindi & English"},
}

// Performance cue tags understood by the prompt.
var CueTags = []string{"[laugh]", "[serious]", "[angry]", "[sad]", "[whisper]", "[silent]"}

// LookupVoice returns the voice with the given id.
func LookupVoice(id string) (Voice, bool) {
	for _, v := range Voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}

// LookupLanguage returns the language with the given id.
func LookupLanguage(id string) (Language, bool) {
	for _, l := range Languages {
		if l.ID == id {
			return l, true
		}
	}
	return Language{}, false
}
