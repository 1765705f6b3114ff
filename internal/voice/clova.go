package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// clovaSpeakers maps catalog voice ids to Clova speaker names.
var clovaSpeakers = map[string]string{
	"default":           "nara",
	"calm_female":       "nara",
	"calm_male":         "jinho",
	"cheerful_female":   "mijin",
	"cheerful_male":     "chunghyun",
	"empathetic_female": "dara",
	"empathetic_male":   "shinji",
	"soothing_female":   "yuna",
	"soothing_male":     "matt",
}

// ClovaSpeaker resolves voiceID, falling back to the default speaker.
func ClovaSpeaker(voiceID string) string {
	if s, ok := clovaSpeakers[voiceID]; ok {
		return s
	}
	return clovaSpeakers[DefaultVoiceID]
}

// ClovaConfig configures the Naver Clova client.
type ClovaConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Clova calls the Naver Clova premium TTS and CSR endpoints.
type Clova struct {
	client *resty.Client
}

// NewClova returns a Clova client. Both keys are required.
func NewClova(cfg ClovaConfig) (*Clova, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("naver client id and secret are required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("X-NCP-APIGW-API-KEY-ID", cfg.ClientID).
		SetHeader("X-NCP-APIGW-API-KEY", cfg.ClientSecret).
		SetTimeout(cfg.Timeout)

	return &Clova{client: c}, nil
}

// Synthesize requests mp3 audio for text.
func (c *Clova) Synthesize(ctx context.Context, text, voiceID string, speed float64) (*Speech, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"speaker": ClovaSpeaker(voiceID),
			"text":    text,
			"speed":   strconv.FormatFloat(speed, 'f', 1, 64),
			"format":  "mp3",
		}).
		Post("/tts-premium/v1/tts")
	if err != nil {
		return nil, fmt.Errorf("clova tts request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("clova tts status %d: %s", resp.StatusCode(), resp.String())
	}
	if len(resp.Body()) == 0 {
		return nil, errors.New("clova tts returned empty audio")
	}

	return newSpeech(resp.Body(), "clova"), nil
}

type clovaTranscript struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// Recognize uploads raw audio and returns the transcript.
func (c *Clova) Recognize(ctx context.Context, audio []byte, language string) (*Transcript, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetQueryParam("lang", language).
		SetBody(audio).
		Post("/recog/v1/stt")
	if err != nil {
		return nil, fmt.Errorf("clova stt request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("clova stt status %d: %s", resp.StatusCode(), resp.String())
	}

	var out clovaTranscript
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return nil, fmt.Errorf("clova stt decode: %w", err)
	}
	return &Transcript{Text: out.Text, Confidence: out.Confidence}, nil
}
