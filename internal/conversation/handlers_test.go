package conversation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/agent"
	"github.com/mindfulchat/mindful-chat/internal/auth"
	"github.com/mindfulchat/mindful-chat/internal/database/dbtest"
	"github.com/mindfulchat/mindful-chat/internal/respond"
	"github.com/mindfulchat/mindful-chat/internal/voice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	router *gin.Engine
	agent  *fakeAgent
}

func newAPI(t *testing.T) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	owner := dbtest.CreateUser(t, db, "mina")
	other := dbtest.CreateUser(t, db, "joon")
	svc := NewService(db)
	ag := &fakeAgent{result: &agent.Result{Content: "I'm listening.", SentimentScore: 0.5}}
	responder := NewResponder(svc, ag, &fakeSpeaker{}, voice.NewMediaStore(t.TempDir(), "/media"), 20, nil)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		// X-User picks the caller: "other" or the owner by default
		if c.GetHeader("X-User") == "other" {
			auth.SetPrincipal(c, other.ID, other.Username)
		} else {
			auth.SetPrincipal(c, owner.ID, owner.Username)
		}
	})
	g := r.Group("/api/conversations")
	g.GET("", ListHandler(svc))
	g.POST("", CreateHandler(svc))
	g.GET("/:id", GetHandler(svc))
	g.GET("/:id/messages", MessagesHandler(svc))
	g.POST("/:id/send_message", SendMessageHandler(svc, responder))
	g.POST("/:id/feedback", FeedbackHandler(svc))

	return &api{router: r, agent: ag}
}

func (a *api) do(method, path string, body any, user string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-User", user)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *api) create(t *testing.T) uint {
	t.Helper()
	w := a.do(http.MethodPost, "/api/conversations", map[string]string{"title": "Evening"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var d struct {
		ID           uint   `json:"id"`
		Title        string `json:"title"`
		MessageCount int    `json:"message_count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, "Evening", d.Title)
	assert.Equal(t, 1, d.MessageCount)
	return d.ID
}

func TestConversationCreateListGet(t *testing.T) {
	a := newAPI(t)
	id := a.create(t)

	w := a.do(http.MethodGet, "/api/conversations", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	last := list[0]["last_message"].(map[string]any)
	assert.Equal(t, WelcomeMessage, last["content"])

	w = a.do(http.MethodGet, fmt.Sprintf("/api/conversations/%d", id), nil, "")
	require.Equal(t, http.StatusOK, w.Code)

	w = a.do(http.MethodGet, fmt.Sprintf("/api/conversations/%d", id), nil, "other")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodGet, "/api/conversations/abc", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateWithoutBodyUsesDefaultTitle(t *testing.T) {
	a := newAPI(t)
	req := httptest.NewRequest(http.MethodPost, "/api/conversations", nil)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), DefaultTitle)
}

func TestSendMessage(t *testing.T) {
	a := newAPI(t)
	id := a.create(t)

	w := a.do(http.MethodPost, fmt.Sprintf("/api/conversations/%d/send_message", id), map[string]string{"content": "I feel better today"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		UserMessage      map[string]any `json:"user_message"`
		AssistantMessage map[string]any `json:"assistant_message"`
		VoiceFile        *string        `json:"voice_file"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "I feel better today", resp.UserMessage["content"])
	assert.Equal(t, "I'm listening.", resp.AssistantMessage["content"])
	assert.Equal(t, 0.5, resp.AssistantMessage["sentiment_score"])
	require.NotNil(t, resp.VoiceFile)
	assert.Contains(t, *resp.VoiceFile, "/media/voice_messages/")

	w = a.do(http.MethodGet, fmt.Sprintf("/api/conversations/%d/messages", id), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 3)
}

func TestSendMessageValidationAndFailures(t *testing.T) {
	a := newAPI(t)
	id := a.create(t)
	path := fmt.Sprintf("/api/conversations/%d/send_message", id)

	w := a.do(http.MethodPost, path, map[string]string{"content": ""}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, path, map[string]string{"content": "hi", "content_type": "video"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, path, map[string]string{"content": "hi"}, "other")
	assert.Equal(t, http.StatusNotFound, w.Code)

	a.agent.err = errors.New("llm down")
	w = a.do(http.MethodPost, path, map[string]string{"content": "hi"}, "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body respond.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, respond.GenericProcessingError, body.Error)
}

func TestFeedback(t *testing.T) {
	a := newAPI(t)
	id := a.create(t)
	path := fmt.Sprintf("/api/conversations/%d/feedback", id)

	w := a.do(http.MethodPost, path, map[string]any{"rating": 6}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, path, map[string]any{"rating": 5, "comment": "thanks"}, "other")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do(http.MethodPost, path, map[string]any{"rating": 5, "comment": "thanks"}, "")
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"rating":5`)
}
