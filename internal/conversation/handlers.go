package conversation

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/auth"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/mindfulchat/mindful-chat/internal/respond"
)

// Summary is a conversation as listed, with its newest message.
type Summary struct {
	models.Conversation
	LastMessage *models.Message `json:"last_message"`
}

// Detail is a conversation with every message.
type Detail struct {
	models.Conversation
	MessageCount int `json:"message_count"`
}

// ListHandler returns the caller's conversations, newest activity first.
func ListHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		convs, err := svc.List(ctx, auth.UserID(c))
		if err != nil {
			slog.Error("Failed to list conversations", "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to list conversations")
			return
		}

		out := make([]Summary, 0, len(convs))
		for _, conv := range convs {
			last, err := svc.Last(ctx, conv.ID)
			if err != nil {
				slog.Error("Failed to load last message", "conversation_id", conv.ID, "error", err)
				respond.Error(c, http.StatusInternalServerError, "failed to list conversations")
				return
			}
			out = append(out, Summary{Conversation: conv, LastMessage: last})
		}
		c.JSON(http.StatusOK, out)
	}
}

type createRequest struct {
	Title string `json:"title" binding:"max=200"`
}

// CreateHandler starts a conversation with the welcome message.
func CreateHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createRequest
		// an empty body is a conversation with the default title
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			respond.Binding(c, err)
			return
		}

		conv, err := svc.Create(c.Request.Context(), auth.UserID(c), req.Title)
		if err != nil {
			slog.Error("Failed to create conversation", "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to create conversation")
			return
		}

		writeDetail(c, svc, http.StatusCreated, conv)
	}
}

// GetHandler returns one conversation with its messages.
func GetHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := owned(c, svc)
		if !ok {
			return
		}
		writeDetail(c, svc, http.StatusOK, conv)
	}
}

// MessagesHandler returns the messages of one conversation, oldest first.
func MessagesHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := owned(c, svc)
		if !ok {
			return
		}
		msgs, err := svc.Messages(c.Request.Context(), conv.ID)
		if err != nil {
			slog.Error("Failed to load messages", "conversation_id", conv.ID, "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to load messages")
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}

type sendRequest struct {
	Content     string `json:"content" binding:"required"`
	ContentType string `json:"content_type" binding:"omitempty,oneof=text voice"`
	VoiceID     string `json:"voice_id" binding:"max=50"`
	// Voice disables audio for the reply when explicitly false.
	Voice *bool `json:"voice"`
}

type sendResponse struct {
	UserMessage      *models.Message `json:"user_message"`
	AssistantMessage *models.Message `json:"assistant_message"`
	VoiceFile        *string         `json:"voice_file"`
}

// SendMessageHandler runs one exchange with the agent. Agent failures are
// logged and answered with the generic processing error.
func SendMessageHandler(svc *Service, responder *Responder) gin.HandlerFunc {
	return func(c *gin.Context) {
		conv, ok := owned(c, svc)
		if !ok {
			return
		}

		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Binding(c, err)
			return
		}

		ex, err := responder.Reply(c.Request.Context(), conv.ID, Input{
			Content:     req.Content,
			ContentType: req.ContentType,
			VoiceID:     req.VoiceID,
			Voice:       req.Voice == nil || *req.Voice,
		})
		if err != nil {
			slog.Error("Error processing message", "conversation_id", conv.ID, "error", err)
			respond.Internal(c)
			return
		}

		resp := sendResponse{UserMessage: ex.UserMessage, AssistantMessage: ex.AssistantMessage}
		if ex.VoiceURL != "" {
			resp.VoiceFile = &ex.VoiceURL
		}
		c.JSON(http.StatusOK, resp)
	}
}

type feedbackRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// FeedbackHandler stores a rating for a conversation the caller owns.
func FeedbackHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := respond.ParamID(c, "id")
		if !ok {
			return
		}

		var req feedbackRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respond.Binding(c, err)
			return
		}

		fb, err := svc.AddFeedback(c.Request.Context(), auth.UserID(c), id, req.Rating, req.Comment)
		if errors.Is(err, ErrNotFound) {
			respond.NotFound(c, ErrNotFound.Error())
			return
		}
		if err != nil {
			slog.Error("Failed to save feedback", "conversation_id", id, "error", err)
			respond.Error(c, http.StatusInternalServerError, "failed to save feedback")
			return
		}
		c.JSON(http.StatusCreated, fb)
	}
}

// owned loads the :id conversation if the caller owns it, otherwise aborts with 404.
func owned(c *gin.Context, svc *Service) (*models.Conversation, bool) {
	id, ok := respond.ParamID(c, "id")
	if !ok {
		return nil, false
	}
	conv, err := svc.Get(c.Request.Context(), auth.UserID(c), id)
	if errors.Is(err, ErrNotFound) {
		respond.NotFound(c, ErrNotFound.Error())
		return nil, false
	}
	if err != nil {
		slog.Error("Failed to load conversation", "conversation_id", id, "error", err)
		respond.Error(c, http.StatusInternalServerError, "failed to load conversation")
		return nil, false
	}
	return conv, true
}

func writeDetail(c *gin.Context, svc *Service, status int, conv *models.Conversation) {
	msgs, err := svc.Messages(c.Request.Context(), conv.ID)
	if err != nil {
		slog.Error("Failed to load messages", "conversation_id", conv.ID, "error", err)
		respond.Error(c, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	conv.Messages = msgs
	c.JSON(status, Detail{Conversation: *conv, MessageCount: len(msgs)})
}
