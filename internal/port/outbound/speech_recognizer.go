package outbound

import "context"

// SpeechRecognizer turns canonical LINEAR16 audio into text.
type SpeechRecognizer interface {
	// Recognize returns the space-joined transcript of all recognised segments.
	Recognize(ctx context.Context, audio []byte, languageCode string) (string, error)
}
