package voice

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Bridge fronts a primary and a fallback vendor for both directions. Primary
// calls run through a circuit breaker; an open breaker is treated like any
// other primary failure. Nothing is retried.
type Bridge struct {
	primaryTTS  Synthesizer
	fallbackTTS Synthesizer
	primarySTT  Recognizer
	fallbackSTT Recognizer

	ttsBreaker *gobreaker.CircuitBreaker
	sttBreaker *gobreaker.CircuitBreaker
	log        *slog.Logger
}

// Vendors lists the adapters a Bridge uses. Any of them may be nil.
type Vendors struct {
	PrimaryTTS  Synthesizer
	FallbackTTS Synthesizer
	PrimarySTT  Recognizer
	FallbackSTT Recognizer
}

// NewBridge builds a bridge over v.
func NewBridge(v Vendors, log *slog.Logger) *Bridge {
	if log == nil {
		log = slog.Default()
	}
	return &Bridge{
		primaryTTS:  v.PrimaryTTS,
		fallbackTTS: v.FallbackTTS,
		primarySTT:  v.PrimarySTT,
		fallbackSTT: v.FallbackSTT,
		ttsBreaker:  newBreaker("clova-tts", log),
		sttBreaker:  newBreaker("clova-stt", log),
		log:         log,
	}
}

func newBreaker(name string, log *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Info("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	})
}

// TextToSpeech synthesizes text with the primary vendor, then the fallback.
// ErrNoAudio is returned when neither produced audio.
func (b *Bridge) TextToSpeech(ctx context.Context, text, voiceID string, speed float64) (*Speech, error) {
	if voiceID == "" {
		voiceID = DefaultVoiceID
	}
	if speed <= 0 {
		speed = 1.0
	}

	if b.primaryTTS != nil {
		out, err := b.ttsBreaker.Execute(func() (interface{}, error) {
			return b.primaryTTS.Synthesize(ctx, text, voiceID, speed)
		})
		if err == nil {
			return out.(*Speech), nil
		}
		b.log.Warn("Primary TTS failed, falling back", "voice_id", voiceID, "error", err)
	}

	if b.fallbackTTS != nil {
		speech, err := b.fallbackTTS.Synthesize(ctx, text, voiceID, speed)
		if err == nil {
			return speech, nil
		}
		b.log.Error("Fallback TTS failed", "voice_id", voiceID, "error", err)
	}

	return nil, ErrNoAudio
}

// SpeechToText transcribes audio with the primary vendor, then the fallback.
// It never fails: when both vendors fail it returns UnrecognizedText with
// confidence 0.
func (b *Bridge) SpeechToText(ctx context.Context, audio []byte, language string) *Transcript {
	if language == "" {
		language = DefaultLanguage
	}

	if b.primarySTT != nil {
		out, err := b.sttBreaker.Execute(func() (interface{}, error) {
			return b.primarySTT.Recognize(ctx, audio, language)
		})
		if err == nil {
			return out.(*Transcript)
		}
		b.log.Warn("Primary STT failed, falling back", "language", language, "error", err)
	}

	if b.fallbackSTT != nil {
		tr, err := b.fallbackSTT.Recognize(ctx, audio, language)
		if err == nil {
			return tr
		}
		b.log.Error("Fallback STT failed", "language", language, "error", err)
	}

	return &Transcript{Text: UnrecognizedText, Confidence: 0}
}

// IsNoAudio reports whether err means synthesis produced nothing.
func IsNoAudio(err error) bool {
	return errors.Is(err, ErrNoAudio)
}
