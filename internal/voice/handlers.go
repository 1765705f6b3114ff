package voice

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/respond"
)

// MaxAudioUpload caps speech-to-text uploads.
const MaxAudioUpload = 25 << 20

type ttsRequest struct {
	Text    string   `json:"text" form:"text" binding:"required"`
	VoiceID string   `json:"voice_id" form:"voice_id" binding:"required,max=50"`
	Speed   *float64 `json:"speed" form:"speed" binding:"omitempty,min=0.5,max=2"`
}

// TextToSpeechHandler returns synthesized audio as an mp3 attachment.
func TextToSpeechHandler(b *Bridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ttsRequest
		if err := c.ShouldBind(&req); err != nil {
			respond.Binding(c, err)
			return
		}
		speed := 1.0
		if req.Speed != nil {
			speed = *req.Speed
		}

		speech, err := b.TextToSpeech(c.Request.Context(), req.Text, req.VoiceID, speed)
		if err != nil {
			slog.Error("Text to speech failed", "voice_id", req.VoiceID, "error", err)
			respond.Internal(c)
			return
		}

		c.Header("Content-Disposition", `attachment; filename="speech.mp3"`)
		c.Data(http.StatusOK, speech.ContentType, speech.Audio)
	}
}

// SpeechToTextHandler transcribes a multipart audio_file upload.
func SpeechToTextHandler(b *Bridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		fh, err := c.FormFile("audio_file")
		if err != nil {
			respond.Fields(c, map[string]string{"audio_file": "This field is required."})
			return
		}
		if fh.Size > MaxAudioUpload {
			respond.Fields(c, map[string]string{"audio_file": fmt.Sprintf("File must be at most %d bytes.", MaxAudioUpload)})
			return
		}

		f, err := fh.Open()
		if err != nil {
			slog.Error("Failed to open upload", "error", err)
			respond.Internal(c)
			return
		}
		defer f.Close()

		audio, err := io.ReadAll(f)
		if err != nil {
			slog.Error("Failed to read upload", "error", err)
			respond.Internal(c)
			return
		}

		tr := b.SpeechToText(c.Request.Context(), audio, c.DefaultPostForm("language", DefaultLanguage))
		c.JSON(http.StatusOK, tr)
	}
}
