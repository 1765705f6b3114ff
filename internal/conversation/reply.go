package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mindfulchat/mindful-chat/internal/agent"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/mindfulchat/mindful-chat/internal/voice"
)

// ErrAgent wraps a failed agent run. Callers show a generic message.
var ErrAgent = errors.New("agent failed")

// Agent produces a reply for one user message.
type Agent interface {
	Run(ctx context.Context, message string, history []agent.Turn) (*agent.Result, error)
}

// Speaker synthesizes assistant replies.
type Speaker interface {
	TextToSpeech(ctx context.Context, text, voiceID string, speed float64) (*voice.Speech, error)
}

// Media persists synthesized audio.
type Media interface {
	Save(name string, data []byte) (string, error)
	URL(rel string) string
}

// Responder runs one exchange: store the user message, ask the agent, store
// the reply, optionally voice it.
type Responder struct {
	conversations *Service
	agent         Agent
	speaker       Speaker
	media         Media
	window        int
	log           *slog.Logger
}

// NewResponder wires a responder. speaker and media may be nil to disable audio.
func NewResponder(conversations *Service, a Agent, speaker Speaker, media Media, window int, log *slog.Logger) *Responder {
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Responder{
		conversations: conversations,
		agent:         a,
		speaker:       speaker,
		media:         media,
		window:        window,
		log:           log,
	}
}

// Input is one user turn.
type Input struct {
	Content     string
	ContentType string
	VoiceID     string
	// Voice requests synthesized audio for the reply.
	Voice bool
	// UserVoiceFile optionally references the uploaded audio of a voice turn.
	UserVoiceFile string
}

// Exchange is the stored result of one turn.
type Exchange struct {
	UserMessage      *models.Message
	AssistantMessage *models.Message
	VoiceURL         string
	HasCrisis        bool
}

// Reply processes in for the conversation. Agent failures return ErrAgent
// after the user message has been stored; synthesis failures are logged and
// the reply is returned without audio.
func (r *Responder) Reply(ctx context.Context, conversationID uint, in Input) (*Exchange, error) {
	if in.ContentType == "" {
		in.ContentType = models.ContentTypeText
	}
	if in.VoiceID == "" {
		in.VoiceID = voice.DefaultVoiceID
	}

	userMsg := &models.Message{
		Content:     in.Content,
		ContentType: in.ContentType,
		MessageType: models.MessageTypeUser,
		VoiceFile:   in.UserVoiceFile,
	}
	if err := r.conversations.Append(ctx, conversationID, userMsg); err != nil {
		return nil, err
	}

	history, err := r.conversations.History(ctx, conversationID, r.window+1)
	if err != nil {
		return nil, err
	}
	// the newest entry is the message just stored; the agent receives it separately
	if n := len(history); n > 0 {
		history = history[:n-1]
	}
	if len(history) > r.window {
		history = history[len(history)-r.window:]
	}

	result, err := r.agent.Run(ctx, in.Content, history)
	if err != nil {
		r.log.Error("Agent run failed", "conversation_id", conversationID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrAgent, err)
	}

	score := result.SentimentScore
	assistantMsg := &models.Message{
		Content:        result.Content,
		ContentType:    models.ContentTypeText,
		MessageType:    models.MessageTypeAssistant,
		SentimentScore: &score,
		VoiceID:        in.VoiceID,
	}
	if err := r.conversations.Append(ctx, conversationID, assistantMsg); err != nil {
		return nil, err
	}

	ex := &Exchange{UserMessage: userMsg, AssistantMessage: assistantMsg, HasCrisis: result.HasCrisis}
	if in.Voice {
		ex.VoiceURL = r.voice(ctx, assistantMsg, in.VoiceID)
	}
	return ex, nil
}

func (r *Responder) voice(ctx context.Context, msg *models.Message, voiceID string) string {
	if r.speaker == nil || r.media == nil {
		return ""
	}

	speech, err := r.speaker.TextToSpeech(ctx, msg.Content, voiceID, 1.0)
	if err != nil {
		r.log.Warn("Text-to-speech failed, replying without audio", "message_id", msg.ID, "error", err)
		return ""
	}

	rel, err := r.media.Save(fmt.Sprintf("response_%d.mp3", msg.ID), speech.Audio)
	if err != nil {
		r.log.Error("Failed to store voice file", "message_id", msg.ID, "error", err)
		return ""
	}
	if err := r.conversations.AttachVoice(ctx, msg, rel, speech.Duration); err != nil {
		r.log.Error("Failed to attach voice file", "message_id", msg.ID, "error", err)
		return ""
	}
	return r.media.URL(rel)
}
