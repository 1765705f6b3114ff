// Package realtime serves the per-conversation WebSocket used for live text
// and voice chat.
package realtime

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
)

// Client to server message types.
const (
	TypeVoiceData   = "voice_data"
	TypeTextMessage = "text_message"
	TypeVoiceEnd    = "voice_end"
	TypePing        = "ping"
)

// Server to client message types.
const (
	TypeConnectionEstablished = "connection_established"
	TypeVoiceChunkReceived    = "voice_chunk_received"
	TypeAssistantResponse     = "assistant_response"
	TypePong                  = "pong"
	TypeError                 = "error"
)

// inbound is any client frame; fields beyond Type depend on the type.
type inbound struct {
	Type          string `json:"type"`
	Message       string `json:"message"`
	Data          string `json:"data"`
	AudioData     string `json:"audio_data"`
	VoiceID       string `json:"voice_id"`
	Language      string `json:"language"`
	GenerateVoice *bool  `json:"generate_voice"`
}

type outbound struct {
	Type    string `json:"type"`
	Message any    `json:"message,omitempty"`
}

// AssistantMessage is the payload of assistant_response.
type AssistantMessage struct {
	ID        uint      `json:"id"`
	Content   string    `json:"content"`
	VoiceURL  *string   `json:"voice_url"`
	CreatedAt time.Time `json:"created_at"`
}

// GroupName is the channel layer group of a conversation.
func GroupName(conversationID uint) string {
	return fmt.Sprintf("conversation_%d", conversationID)
}

// decodeAudio accepts raw base64 or a data URL ("data:audio/webm;base64,...").
func decodeAudio(s string) ([]byte, error) {
	if i := strings.IndexByte(s, ','); i >= 0 {
		s = s[i+1:]
	}
	audio, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid audio encoding: %w", err)
	}
	return audio, nil
}
