// Package voice converts between speech and text through a primary vendor
// (Naver Clova) with an OpenAI fallback.
package voice

import (
	"context"
	"errors"
)

// ErrNoAudio is returned when every synthesis vendor failed.
var ErrNoAudio = errors.New("no vendor produced audio")

// DefaultVoiceID is used when the caller does not name a voice.
const DefaultVoiceID = "default"

// DefaultLanguage is the recognition language when none is given.
const DefaultLanguage = "ko-KR"

// UnrecognizedText is returned in place of a transcript when recognition fails everywhere.
const UnrecognizedText = "음성을 인식할 수 없었습니다. 다시 시도해주세요."

// mp3 is assumed to be 128 kbps, roughly 16 KiB per second.
const bytesPerSecond = 16 * 1024

// Speech is synthesized audio.
type Speech struct {
	Audio       []byte
	ContentType string
	// Duration in seconds, estimated from size at a constant bitrate.
	Duration float64
	Vendor   string
}

// Transcript is recognized text.
type Transcript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Synthesizer turns text into audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string, speed float64) (*Speech, error)
}

// Recognizer turns audio into text.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte, language string) (*Transcript, error)
}

// EstimateDuration approximates playback seconds from byte size.
func EstimateDuration(size int) float64 {
	return float64(size) / bytesPerSecond
}

func newSpeech(audio []byte, vendor string) *Speech {
	return &Speech{
		Audio:       audio,
		ContentType: "audio/mpeg",
		Duration:    EstimateDuration(len(audio)),
		Vendor:      vendor,
	}
}
