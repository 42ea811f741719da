package tts

// VoiceProfile describes a voice offered by a TTS provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider identifies which TTS provider this voice belongs to.
	Provider string

	// Metadata holds provider-specific voice attributes (gender, age, accent, etc.).
	Metadata map[string]string
}

// VoiceSettings tunes how a provider renders a voice.
type VoiceSettings struct {
	// Stability in [0, 1]. Higher values make the delivery more monotone.
	Stability float64

	// SimilarityBoost in [0, 1]. Higher values stick closer to the original voice.
	SimilarityBoost float64
}
