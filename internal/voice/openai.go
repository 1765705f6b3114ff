package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

var openAIVoices = map[string]openai.SpeechVoice{
	"default":           openai.VoiceAlloy,
	"calm_female":       openai.VoiceNova,
	"calm_male":         openai.VoiceOnyx,
	"cheerful_female":   openai.VoiceShimmer,
	"cheerful_male":     openai.VoiceFable,
	"empathetic_female": openai.VoiceNova,
	"empathetic_male":   openai.VoiceEcho,
	"soothing_female":   openai.VoiceShimmer,
	"soothing_male":     openai.VoiceOnyx,
}

// OpenAIVoice resolves voiceID, falling back to alloy.
func OpenAIVoice(voiceID string) openai.SpeechVoice {
	if v, ok := openAIVoices[voiceID]; ok {
		return v
	}
	return openai.VoiceAlloy
}

// OpenAI synthesizes with tts-1 and transcribes with whisper-1.
type OpenAI struct {
	client *openai.Client
}

// NewOpenAI wraps an API client.
func NewOpenAI(client *openai.Client) *OpenAI {
	return &OpenAI{client: client}
}

// Synthesize requests mp3 audio for text.
func (o *OpenAI) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*Speech, error) {
	resp, err := o.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          OpenAIVoice(voiceID),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("openai tts: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("openai tts read: %w", err)
	}
	if len(audio) == 0 {
		return nil, errors.New("openai tts returned empty audio")
	}
	return newSpeech(audio, "openai"), nil
}

// Recognize transcribes audio. Whisper takes the bare language code ("ko", not "ko-KR")
// and reports no confidence, so a fixed 0.9 is returned.
func (o *OpenAI) Recognize(ctx context.Context, audio []byte, language string) (*Transcript, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "audio.webm",
		Reader:   bytes.NewReader(audio),
		Language: strings.SplitN(language, "-", 2)[0],
	})
	if err != nil {
		return nil, fmt.Errorf("openai stt: %w", err)
	}
	return &Transcript{Text: resp.Text, Confidence: 0.9}, nil
}
