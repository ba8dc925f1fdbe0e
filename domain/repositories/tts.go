package repositories

import "context"

// Rate selects the speaking speed of synthesized audio
type Rate string

const (
	RateNormal Rate = "normal"
	RateSlow   Rate = "slow"
)

// Valid reports whether r is a known rate
func (r Rate) Valid() bool {
	return r == RateNormal || r == RateSlow
}

// ParseRate converts user input into a Rate, defaulting to RateNormal for an empty value
func ParseRate(s string) (Rate, bool) {
	switch Rate(s) {
	case "", RateNormal:
		return RateNormal, true
	case RateSlow:
		return RateSlow, true
	default:
		return "", false
	}
}

// TextToSpeech abstracts speech synthesis providers.
// Implementations may call remote services and must honor ctx cancellation.
type TextToSpeech interface {
	// Synthesize converts text into a complete, playable audio payload
	Synthesize(ctx context.Context, text, language string, rate Rate) ([]byte, error)
	// Format returns the file extension of the produced audio (e.g. "mp3")
	Format() string
}
