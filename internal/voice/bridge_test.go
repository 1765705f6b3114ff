package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTTS struct {
	audio []byte
	err   error
	calls int
	voice string
}

func (f *fakeTTS) Synthesize(_ context.Context, _ string, voiceID string, _ float64) (*Speech, error) {
	f.calls++
	f.voice = voiceID
	if f.err != nil {
		return nil, f.err
	}
	return newSpeech(f.audio, "fake"), nil
}

type fakeSTT struct {
	text string
	err  error
	lang string
}

func (f *fakeSTT) Recognize(_ context.Context, _ []byte, language string) (*Transcript, error) {
	f.lang = language
	if f.err != nil {
		return nil, f.err
	}
	return &Transcript{Text: f.text, Confidence: 0.8}, nil
}

func TestTextToSpeechUsesPrimary(t *testing.T) {
	primary := &fakeTTS{audio: []byte("primary")}
	fallback := &fakeTTS{audio: []byte("fallback")}
	b := NewBridge(Vendors{PrimaryTTS: primary, FallbackTTS: fallback}, nil)

	speech, err := b.TextToSpeech(context.Background(), "hello", "", 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("primary"), speech.Audio)
	assert.Equal(t, DefaultVoiceID, primary.voice)
	assert.Zero(t, fallback.calls)
}

func TestTextToSpeechFallsBackWhenPrimaryFails(t *testing.T) {
	primary := &fakeTTS{err: errors.New("clova 500")}
	fallback := &fakeTTS{audio: []byte("fallback-audio")}
	b := NewBridge(Vendors{PrimaryTTS: primary, FallbackTTS: fallback}, nil)

	speech, err := b.TextToSpeech(context.Background(), "hello", "calm_male", 1)
	require.NoError(t, err)
	assert.NotEmpty(t, speech.Audio)
	assert.Equal(t, []byte("fallback-audio"), speech.Audio)
	assert.Equal(t, "calm_male", fallback.voice)
}

func TestTextToSpeechOpenBreakerSkipsPrimary(t *testing.T) {
	primary := &fakeTTS{err: errors.New("down")}
	fallback := &fakeTTS{audio: []byte("x")}
	b := NewBridge(Vendors{PrimaryTTS: primary, FallbackTTS: fallback}, nil)

	for i := 0; i < 8; i++ {
		_, err := b.TextToSpeech(context.Background(), "hi", "default", 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, primary.calls, "breaker opens after five consecutive failures")
	assert.Equal(t, 8, fallback.calls)
}

func TestTextToSpeechBothFail(t *testing.T) {
	b := NewBridge(Vendors{
		PrimaryTTS:  &fakeTTS{err: errors.New("a")},
		FallbackTTS: &fakeTTS{err: errors.New("b")},
	}, nil)

	_, err := b.TextToSpeech(context.Background(), "hi", "default", 1)
	assert.ErrorIs(t, err, ErrNoAudio)
	assert.True(t, IsNoAudio(err))

	_, err = NewBridge(Vendors{}, nil).TextToSpeech(context.Background(), "hi", "default", 1)
	assert.ErrorIs(t, err, ErrNoAudio)
}

func TestSpeechToTextFallbackAndPlaceholder(t *testing.T) {
	fallback := &fakeSTT{text: "안녕하세요"}
	b := NewBridge(Vendors{PrimarySTT: &fakeSTT{err: errors.New("down")}, FallbackSTT: fallback}, nil)

	tr := b.SpeechToText(context.Background(), []byte("audio"), "")
	assert.Equal(t, "안녕하세요", tr.Text)
	assert.Equal(t, DefaultLanguage, fallback.lang)

	b = NewBridge(Vendors{PrimarySTT: &fakeSTT{err: errors.New("a")}, FallbackSTT: &fakeSTT{err: errors.New("b")}}, nil)
	tr = b.SpeechToText(context.Background(), []byte("audio"), "ko-KR")
	assert.Equal(t, UnrecognizedText, tr.Text)
	assert.Zero(t, tr.Confidence)
}

func TestEstimateDuration(t *testing.T) {
	assert.Equal(t, 1.0, EstimateDuration(16*1024))
	assert.Equal(t, 2.5, EstimateDuration(40*1024))
	assert.Zero(t, EstimateDuration(0))
}

func TestVoiceMappingsFallBackToDefault(t *testing.T) {
	assert.Equal(t, "jinho", ClovaSpeaker("calm_male"))
	assert.Equal(t, "nara", ClovaSpeaker("unknown"))
	assert.EqualValues(t, "echo", OpenAIVoice("empathetic_male"))
	assert.EqualValues(t, "alloy", OpenAIVoice("unknown"))
}
