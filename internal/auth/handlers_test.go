package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/mindfulchat/mindful-chat/internal/config"
	"github.com/mindfulchat/mindful-chat/internal/credentials"
	"github.com/mindfulchat/mindful-chat/internal/database/dbtest"
	"github.com/mindfulchat/mindful-chat/internal/identity"
	"github.com/mindfulchat/mindful-chat/internal/mailer"
	"github.com/mindfulchat/mindful-chat/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const siteURL = "http://mindful.test"

type outbox struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (o *outbox) Send(_ context.Context, msg mailer.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err != nil {
		return o.err
	}
	o.sent = append(o.sent, msg)
	return nil
}

// linkPath returns the path of the site link in the last sent message.
func (o *outbox) linkPath(t *testing.T) string {
	t.Helper()
	o.mu.Lock()
	defer o.mu.Unlock()
	require.NotEmpty(t, o.sent)
	for _, field := range strings.Fields(o.sent[len(o.sent)-1].Body) {
		if strings.HasPrefix(field, siteURL) {
			return strings.TrimPrefix(field, siteURL)
		}
	}
	t.Fatal("no link in message")
	return ""
}

type harness struct {
	router *gin.Engine
	store  *credentials.Store
	db     *gorm.DB
	mail   *outbox
	cfg    *config.Config
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := dbtest.New(t)
	store, err := credentials.Open(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)

	h := &harness{
		store: store,
		db:    db,
		mail:  &outbox{},
		cfg:   &config.Config{Env: "development", SiteURL: siteURL},
	}
	handlers := NewHandlers(store, identity.NewBridge(db, store), h.mail, h.cfg, nil)

	r := gin.New()
	r.Use(sessions.Sessions("mindful_session", cookie.NewStore([]byte("test-secret"))))
	r.POST("/register", handlers.Register)
	r.POST("/login", handlers.Login)
	r.POST("/logout", handlers.Logout)
	r.GET("/verify-email/:uid/:token", handlers.VerifyEmail)
	r.POST("/password-reset", handlers.PasswordReset)
	r.POST("/password-reset-confirm/:uid/:token", handlers.PasswordResetConfirm)
	r.GET("/whoami", RequireAuth(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "username": Username(c)})
	})
	h.router = r
	return h
}

func (h *harness) do(method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func registration(username string) map[string]any {
	return map[string]any{
		"username":  username,
		"email":     username + "@example.com",
		"password1": "pa55word",
		"password2": "pa55word",
	}
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	h := newHarness(t)

	w := h.do(http.MethodPost, "/register", registration("mina"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["is_active"])
	require.Len(t, h.mail.sent, 1)
	assert.Equal(t, "mina@example.com", h.mail.sent[0].To)
	assert.Equal(t, verificationSubject, h.mail.sent[0].Subject)

	w = h.do(http.MethodPost, "/login", map[string]string{"username": "mina", "password": "pa55word"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodGet, h.mail.linkPath(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = h.do(http.MethodPost, "/login", map[string]string{"username": "mina@example.com", "password": "pa55word"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "mina", decode(t, w)["username"])
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	w = h.do(http.MethodGet, "/whoami", nil, cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "mina", decode(t, w)["username"])

	var user models.User
	require.NoError(t, h.db.Where("username = ?", "mina").First(&user).Error)
	assert.True(t, user.IsActive)
}

func TestVerificationLinkIsOneShot(t *testing.T) {
	h := newHarness(t)
	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/register", registration("mina")).Code)
	link := h.mail.linkPath(t)

	require.Equal(t, http.StatusOK, h.do(http.MethodGet, link, nil).Code)

	w := h.do(http.MethodGet, link, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, invalidLink, decode(t, w)["error"])

	w = h.do(http.MethodGet, "/verify-email/!!!/token", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)

	body := registration("mina")
	body["password2"] = "different"
	w := h.do(http.MethodPost, "/register", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields := decode(t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "password2")

	require.Equal(t, http.StatusCreated, h.do(http.MethodPost, "/register", registration("mina")).Code)

	dup := registration("mina")
	dup["email"] = "other@example.com"
	w = h.do(http.MethodPost, "/register", dup)
	require.Equal(t, http.StatusBadRequest, w.Code)
	fields = decode(t, w)["fields"].(map[string]any)
	assert.Equal(t, "A user with that username already exists.", fields["username"])
}

func TestRegisterActivatesWhenMailFailsInDevelopment(t *testing.T) {
	h := newHarness(t)
	h.mail.err = errors.New("smtp down")

	w := h.do(http.MethodPost, "/register", registration("mina"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, true, decode(t, w)["is_active"])

	rec, err := h.store.FindByUsername("mina")
	require.NoError(t, err)
	assert.True(t, rec.IsActive)
}

func TestRegisterStaysInactiveWhenMailFailsInProduction(t *testing.T) {
	h := newHarness(t)
	h.cfg.Env = "production"
	h.mail.err = errors.New("smtp down")

	w := h.do(http.MethodPost, "/register", registration("mina"))
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, false, decode(t, w)["is_active"])
}

func TestLoginFailuresAreGeneric(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Register("mina", "mina@example.com", "pa55word", credentials.RegisterOptions{Active: true})
	require.NoError(t, err)

	wrong := h.do(http.MethodPost, "/login", map[string]string{"username": "mina", "password": "nope"})
	unknown := h.do(http.MethodPost, "/login", map[string]string{"username": "ghost", "password": "pa55word"})

	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/whoami", nil).Code)
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Register("mina", "mina@example.com", "pa55word", credentials.RegisterOptions{Active: true})
	require.NoError(t, err)

	w := h.do(http.MethodPost, "/login", map[string]string{"username": "mina", "password": "pa55word"})
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(http.MethodPost, "/logout", nil, w.Result().Cookies()...)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/whoami", nil, w.Result().Cookies()...).Code)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	_, err := h.store.Register("mina", "mina@example.com", "old-pass", credentials.RegisterOptions{Active: true})
	require.NoError(t, err)

	unknown := h.do(http.MethodPost, "/password-reset", map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Empty(t, h.mail.sent)

	known := h.do(http.MethodPost, "/password-reset", map[string]string{"email": "mina@example.com"})
	require.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, unknown.Body.String(), known.Body.String())
	link := h.mail.linkPath(t)

	w := h.do(http.MethodPost, link+"x", map[string]string{"new_password1": "new-pass", "new_password2": "new-pass"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, invalidLink, decode(t, w)["error"])

	w = h.do(http.MethodPost, link, map[string]string{"new_password1": "new-pass", "new_password2": "typo"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "new_password2")

	w = h.do(http.MethodPost, link, map[string]string{"new_password1": "new-pass", "new_password2": "new-pass"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/login", map[string]string{"username": "mina", "password": "old-pass"}).Code)
	assert.Equal(t, http.StatusOK, h.do(http.MethodPost, "/login", map[string]string{"username": "mina", "password": "new-pass"}).Code)

	w = h.do(http.MethodPost, link, map[string]string{"new_password1": "again", "new_password2": "again"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUIDRoundTrip(t *testing.T) {
	id := credentials.NewID()
	uid := EncodeUID(id)
	assert.NotContains(t, uid, "=")

	decoded, err := DecodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, id, decoded)

	_, err = DecodeUID("not base64!")
	assert.Error(t, err)
}
