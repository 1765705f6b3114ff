package realtime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mindfulchat/mindful-chat/internal/conversation"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/mindfulchat/mindful-chat/internal/respond"
	"github.com/mindfulchat/mindful-chat/internal/streams"
	"github.com/mindfulchat/mindful-chat/internal/voice"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 36 << 20
	sendBuffer     = 32
	jobBuffer      = 8
)

// job is one user turn waiting for the worker.
type job struct {
	text        string
	audio       []byte
	language    string
	voiceID     string
	voice       bool
	contentType string
}

// socket is one connected client. The reader loop runs on the handler
// goroutine; agent and voice work run on worker; every write goes through
// send so only writer touches the connection.
type socket struct {
	conn           *websocket.Conn
	conversationID uint
	deps           Deps
	log            *slog.Logger

	send   chan []byte
	jobs   chan job
	chunks bytes.Buffer
}

func (s *socket) serve(sub *streams.Subscription) {
	var writerDone sync.WaitGroup
	writerDone.Add(1)
	go func() {
		defer writerDone.Done()
		s.writer()
	}()

	var relays sync.WaitGroup
	relays.Add(2)
	go func() {
		defer relays.Done()
		for msg := range sub.C {
			s.send <- msg
		}
	}()
	go func() {
		defer relays.Done()
		s.worker()
	}()

	s.emit(outbound{Type: TypeConnectionEstablished, Message: "Connected to voice conversation"})
	s.reader()

	close(s.jobs)
	sub.Close()
	relays.Wait()
	close(s.send)
	writerDone.Wait()
	s.log.Info("WebSocket closed", "conversation_id", s.conversationID)
}

func (s *socket) reader() {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("WebSocket read failed", "conversation_id", s.conversationID, "error", err)
			}
			return
		}

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.fail("invalid message")
			continue
		}
		s.handle(in)
	}
}

func (s *socket) handle(in inbound) {
	switch in.Type {
	case TypePing:
		s.emit(outbound{Type: TypePong})

	case TypeVoiceData:
		chunk, err := decodeAudio(in.Data)
		if err != nil {
			s.fail(err.Error())
			return
		}
		if s.chunks.Len()+len(chunk) > voice.MaxAudioUpload {
			s.chunks.Reset()
			s.fail("audio too large")
			return
		}
		s.chunks.Write(chunk)
		s.emit(outbound{Type: TypeVoiceChunkReceived})

	case TypeVoiceEnd:
		var audio []byte
		if in.AudioData != "" {
			decoded, err := decodeAudio(in.AudioData)
			if err != nil {
				s.chunks.Reset()
				s.fail(err.Error())
				return
			}
			audio = decoded
		} else {
			audio = bytes.Clone(s.chunks.Bytes())
		}
		s.chunks.Reset()
		if len(audio) == 0 {
			s.fail("no audio received")
			return
		}
		s.enqueue(job{
			audio:       audio,
			language:    in.Language,
			voiceID:     in.VoiceID,
			voice:       true,
			contentType: models.ContentTypeVoice,
		})

	case TypeTextMessage:
		if in.Message == "" {
			s.fail("message is required")
			return
		}
		s.enqueue(job{
			text:        in.Message,
			voiceID:     in.VoiceID,
			voice:       in.GenerateVoice == nil || *in.GenerateVoice,
			contentType: models.ContentTypeText,
		})

	default:
		s.fail(fmt.Sprintf("unknown message type %q", in.Type))
	}
}

func (s *socket) enqueue(j job) {
	select {
	case s.jobs <- j:
	default:
		s.fail("too many messages in flight, slow down")
	}
}

// worker runs queued turns in order. A disconnect does not abort the turn in
// progress; its reply is still stored and published.
func (s *socket) worker() {
	for j := range s.jobs {
		s.process(j)
	}
}

func (s *socket) process(j job) {
	ctx := context.Background()
	text := j.text
	var userVoice string

	if j.audio != nil {
		tr := s.deps.Voice.SpeechToText(ctx, j.audio, j.language)
		text = tr.Text
		if s.deps.Media != nil {
			rel, err := s.deps.Media.Save(fmt.Sprintf("user_%d_%s.webm", s.conversationID, uuid.NewString()), j.audio)
			if err != nil {
				s.log.Error("Failed to store user audio", "conversation_id", s.conversationID, "error", err)
			}
			userVoice = rel
		}
	}

	ex, err := s.deps.Responder.Reply(ctx, s.conversationID, conversation.Input{
		Content:       text,
		ContentType:   j.contentType,
		VoiceID:       j.voiceID,
		Voice:         j.voice,
		UserVoiceFile: userVoice,
	})
	if err != nil {
		if !errors.Is(err, conversation.ErrAgent) {
			s.log.Error("Error processing message", "conversation_id", s.conversationID, "error", err)
		}
		s.fail(respond.GenericProcessingError)
		return
	}

	msg := AssistantMessage{
		ID:        ex.AssistantMessage.ID,
		Content:   ex.AssistantMessage.Content,
		CreatedAt: ex.AssistantMessage.CreatedAt,
	}
	if ex.VoiceURL != "" {
		msg.VoiceURL = &ex.VoiceURL
	}
	payload, err := json.Marshal(outbound{Type: TypeAssistantResponse, Message: msg})
	if err != nil {
		s.log.Error("Failed to encode response", "error", err)
		return
	}
	if err := s.deps.Layer.Publish(ctx, GroupName(s.conversationID), payload); err != nil {
		s.log.Error("Failed to publish response, replying directly", "conversation_id", s.conversationID, "error", err)
		s.send <- payload
	}
}

func (s *socket) emit(out outbound) {
	payload, err := json.Marshal(out)
	if err != nil {
		s.log.Error("Failed to encode message", "type", out.Type, "error", err)
		return
	}
	s.send <- payload
}

func (s *socket) fail(message string) {
	s.emit(outbound{Type: TypeError, Message: message})
}

// writer owns the connection for writing. After a write error it keeps
// draining send so producers never block.
func (s *socket) writer() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	broken := false
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				if !broken {
					_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
					_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				}
				_ = s.conn.Close()
				return
			}
			if broken {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				broken = true
				_ = s.conn.Close()
			}
		case <-ticker.C:
			if broken {
				continue
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				broken = true
				_ = s.conn.Close()
			}
		}
	}
}
