package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mindfulchat/mindful-chat/internal/auth"
	"github.com/mindfulchat/mindful-chat/internal/conversation"
	"github.com/mindfulchat/mindful-chat/internal/respond"
	"github.com/mindfulchat/mindful-chat/internal/streams"
	"github.com/mindfulchat/mindful-chat/internal/voice"
)

// Transcriber turns uploaded audio into text.
type Transcriber interface {
	SpeechToText(ctx context.Context, audio []byte, language string) *voice.Transcript
}

// Deps are the collaborators of the socket handler. Media may be nil.
type Deps struct {
	Conversations *conversation.Service
	Responder     *conversation.Responder
	Voice         Transcriber
	Media         conversation.Media
	Layer         streams.Layer
	Log           *slog.Logger
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Handler upgrades GET /ws/conversations/:id for the conversation owner.
// Anyone else gets 404 before the upgrade.
func Handler(d Deps) gin.HandlerFunc {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return func(c *gin.Context) {
		id, ok := respond.ParamID(c, "id")
		if !ok {
			return
		}
		conv, err := d.Conversations.Get(c.Request.Context(), auth.UserID(c), id)
		if errors.Is(err, conversation.ErrNotFound) {
			respond.NotFound(c, conversation.ErrNotFound.Error())
			return
		}
		if err != nil {
			d.Log.Error("Failed to load conversation", "conversation_id", id, "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to load conversation")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// Upgrade already wrote the HTTP error.
			d.Log.Warn("WebSocket upgrade failed", "conversation_id", id, "error", err)
			return
		}

		s := &socket{
			conn:           conn,
			conversationID: conv.ID,
			deps:           d,
			log:            d.Log.With("user_id", auth.UserID(c)),
			send:           make(chan []byte, sendBuffer),
			jobs:           make(chan job, jobBuffer),
		}
		s.log.Info("WebSocket connected", "conversation_id", conv.ID)
		s.serve(d.Layer.Subscribe(GroupName(conv.ID)))
	}
}
