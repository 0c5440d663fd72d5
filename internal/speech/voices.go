package speech

// TwilioVoiceFor maps an OpenAI voice family onto a Twilio built-in voice.
func TwilioVoiceFor(voice string) string {
	switch voice {
	case "fable", "onyx":
		return "man"
	case "nova", "shimmer":
		return "woman"
	default:
		// alloy, echo and anything unknown.
		return "alice"
	}
}

var elevenLabsVoices = map[string]string{
	"Adam":   "pNInz6obpgDQGcFmaJgB",
	"Antoni": "ErXwobaYiN019PkySvjV",
	"Arnold": "VR6AewLTigWG4xSOukaG",
	"Bella":  "EXAVITQu4vr4xnSDxMaL",
	"Domi":   "AZnzlk1XvdvUeBnXmlld",
	"Elli":   "MF3mGyEYCl7XYWbV9V6O",
	"Josh":   "TxGEqnHWrfWFTfGW9XjX",
	"Rachel": "21m00Tcm4TlvDq8ikWAM",
	"Sam":    "yoZ06aMxZJJ28mfd3POQ",
}

const (
	// DefaultElevenLabsVoice is used by the direct synthesis endpoint.
	DefaultElevenLabsVoice = "Adam"
	// DefaultCallVoice is used when rendering audio for a call.
	DefaultCallVoice = "Rachel"
)

// ElevenLabsVoiceID resolves a voice name to its ElevenLabs id, falling back
// to the id of fallback (itself a name) when voice is unknown.
func ElevenLabsVoiceID(voice, fallback string) string {
	if id, ok := elevenLabsVoices[voice]; ok {
		return id
	}
	return elevenLabsVoices[fallback]
}

// ElevenLabsVoiceNames lists the supported voice names.
func ElevenLabsVoiceNames() []string {
	return []string{"Adam", "Antoni", "Arnold", "Bella", "Domi", "Elli", "Josh", "Rachel", "Sam"}
}
