// Package server assembles the HTTP surface: sessions, auth, the JSON API,
// the conversation socket and media files.
package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/auth"
	"github.com/mindfulchat/mindful-chat/internal/config"
	"github.com/mindfulchat/mindful-chat/internal/conversation"
	"github.com/mindfulchat/mindful-chat/internal/health"
	"github.com/mindfulchat/mindful-chat/internal/mood"
	"github.com/mindfulchat/mindful-chat/internal/outreach"
	"github.com/mindfulchat/mindful-chat/internal/profile"
	"github.com/mindfulchat/mindful-chat/internal/realtime"
	"github.com/mindfulchat/mindful-chat/internal/streams"
	"github.com/mindfulchat/mindful-chat/internal/voice"
	"github.com/mindfulchat/mindful-chat/internal/voices"
	"gorm.io/gorm"
)

// SessionName is the cookie holding the signed session.
const SessionName = "mindful_session"

const sessionMaxAge = 14 * 24 * 60 * 60

// Deps are the components the router exposes.
type Deps struct {
	Config        *config.Config
	DB            *gorm.DB
	Auth          *auth.Handlers
	GoogleEnabled bool
	Profile       *profile.Service
	Conversations *conversation.Service
	Responder     *conversation.Responder
	Voice         *voice.Bridge
	Media         *voice.MediaStore
	Outreach      *outreach.Service
	Layer         streams.Layer
}

// NewRouter wires every route.
func NewRouter(d Deps) *gin.Engine {
	if d.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	store := cookie.NewStore([]byte(d.Config.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   d.Config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(SessionName, store))

	r.GET("/health", gin.WrapF(health.Handler))
	if d.Media != nil {
		r.Static("/media", d.Media.Root())
	}

	// Account flows
	r.POST("/register", d.Auth.Register)
	r.POST("/login", d.Auth.Login)
	r.POST("/logout", d.Auth.Logout)
	r.GET("/verify-email/:uid/:token", d.Auth.VerifyEmail)
	r.POST("/password-reset", d.Auth.PasswordReset)
	r.POST("/password-reset-confirm/:uid/:token", d.Auth.PasswordResetConfirm)
	if d.GoogleEnabled {
		r.GET("/auth/google", d.Auth.GoogleLogin)
		r.GET("/auth/google/callback", d.Auth.GoogleCallback(d.DB))
	}

	r.POST("/profile/update-voice-setting", auth.RequireAuth(), profile.UpdateVoiceSettingHandler(d.Profile))

	r.GET("/ws/conversations/:id", auth.RequireAuth(), realtime.Handler(realtime.Deps{
		Conversations: d.Conversations,
		Responder:     d.Responder,
		Voice:         d.Voice,
		Media:         d.Media,
		Layer:         d.Layer,
	}))

	api := r.Group("/api", auth.RequireAuth())
	{
		api.GET("/users/me", profile.MeHandler(d.Profile))
		api.PATCH("/users/me/preferences", profile.UpdatePreferencesHandler(d.Profile))

		api.GET("/conversations", conversation.ListHandler(d.Conversations))
		api.POST("/conversations", conversation.CreateHandler(d.Conversations))
		api.GET("/conversations/:id", conversation.GetHandler(d.Conversations))
		api.GET("/conversations/:id/messages", conversation.MessagesHandler(d.Conversations))
		api.POST("/conversations/:id/send_message", conversation.SendMessageHandler(d.Conversations, d.Responder))
		api.POST("/conversations/:id/feedback", conversation.FeedbackHandler(d.Conversations))

		api.GET("/moods", mood.ListHandler(d.DB))
		api.POST("/moods", mood.CreateHandler(d.DB))
		api.GET("/moods/stats", mood.StatsHandler(d.DB))

		api.GET("/voice-profiles", voices.ListHandler(d.DB))
		api.GET("/voice-profiles/:id", voices.GetHandler(d.DB))
		api.POST("/text-to-speech", voice.TextToSpeechHandler(d.Voice))
		api.POST("/speech-to-text", voice.SpeechToTextHandler(d.Voice))

		api.GET("/tasks", outreach.ListTasksHandler(d.Outreach))
		api.POST("/tasks/request_comfort_email", outreach.RequestComfortEmailHandler(d.Outreach))
		api.POST("/tasks/analyze_mood", outreach.AnalyzeMoodHandler(d.Outreach))
		api.GET("/tasks/comfort_email_preview", outreach.ComfortEmailPreviewHandler(d.Outreach))
		api.GET("/scheduled-emails", outreach.ListEmailsHandler(d.Outreach))
		api.POST("/scheduled-emails", outreach.CreateEmailHandler(d.Outreach))
		api.POST("/scheduled-emails/:id/cancel", outreach.CancelEmailHandler(d.Outreach))
	}

	return r
}

// NewHTTPServer wraps handler with the listen address and timeouts. No write
// timeout: send_message waits on three model calls and synthesis.
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
