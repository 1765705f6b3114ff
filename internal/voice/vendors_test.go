package voice

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClovaSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tts-premium/v1/tts", r.URL.Path)
		assert.Equal(t, "id", r.Header.Get("X-NCP-APIGW-API-KEY-ID"))
		assert.Equal(t, "secret", r.Header.Get("X-NCP-APIGW-API-KEY"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "mijin", r.PostForm.Get("speaker"))
		assert.Equal(t, "1.0", r.PostForm.Get("speed"))
		assert.Equal(t, "mp3", r.PostForm.Get("format"))
		_, _ = w.Write(make([]byte, 32*1024))
	}))
	defer srv.Close()

	c, err := NewClova(ClovaConfig{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)

	speech, err := c.Synthesize(context.Background(), "안녕", "cheerful_female", 1)
	require.NoError(t, err)
	assert.Len(t, speech.Audio, 32*1024)
	assert.Equal(t, "audio/mpeg", speech.ContentType)
	assert.Equal(t, 2.0, speech.Duration)
}

func TestClovaErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := NewClova(ClovaConfig{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)

	_, err = c.Synthesize(context.Background(), "x", "default", 1)
	assert.ErrorContains(t, err, "status 429")
	_, err = c.Recognize(context.Background(), []byte("a"), "ko-KR")
	assert.ErrorContains(t, err, "status 429")

	_, err = NewClova(ClovaConfig{BaseURL: srv.URL})
	assert.Error(t, err)
}

func TestClovaRecognize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/recog/v1/stt", r.URL.Path)
		assert.Equal(t, "ko-KR", r.URL.Query().Get("lang"))
		assert.Equal(t, "application/octet-stream", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "raw-audio", string(body))
		_ = json.NewEncoder(w).Encode(map[string]any{"text": "오늘 힘들었어", "confidence": 0.75})
	}))
	defer srv.Close()

	c, err := NewClova(ClovaConfig{BaseURL: srv.URL, ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)

	tr, err := c.Recognize(context.Background(), []byte("raw-audio"), "ko-KR")
	require.NoError(t, err)
	assert.Equal(t, "오늘 힘들었어", tr.Text)
	assert.Equal(t, 0.75, tr.Confidence)
}

func newOpenAITestClient(url string) *openai.Client {
	cfg := openai.DefaultConfig("sk-test")
	cfg.BaseURL = url + "/v1"
	return openai.NewClientWithConfig(cfg)
}

func TestOpenAISynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "tts-1", req["model"])
		assert.Equal(t, "onyx", req["voice"])
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("mp3-bytes"))
	}))
	defer srv.Close()

	speech, err := NewOpenAI(newOpenAITestClient(srv.URL)).Synthesize(context.Background(), "hello", "soothing_male", 1)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), speech.Audio)
	assert.Equal(t, "openai", speech.Vendor)
}

func TestOpenAIRecognizeSendsBareLanguage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/transcriptions", r.URL.Path)
		_, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		require.NoError(t, err)
		form, err := multipart.NewReader(r.Body, params["boundary"]).ReadForm(1 << 20)
		require.NoError(t, err)
		assert.Equal(t, []string{"ko"}, form.Value["language"])
		assert.Equal(t, []string{"whisper-1"}, form.Value["model"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"text":"안녕하세요"}`))
	}))
	defer srv.Close()

	tr, err := NewOpenAI(newOpenAITestClient(srv.URL)).Recognize(context.Background(), []byte("webm"), "ko-KR")
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요", tr.Text)
	assert.Equal(t, 0.9, tr.Confidence)
}

func TestMediaStoreSave(t *testing.T) {
	root := t.TempDir()
	m := NewMediaStore(root, "/media")

	rel, err := m.Save("../response_7.mp3", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "voice_messages/response_7.mp3", rel)
	assert.Equal(t, "/media/voice_messages/response_7.mp3", m.URL(rel))
	assert.Empty(t, m.URL(""))

	data, err := os.ReadFile(filepath.Join(root, "voice_messages", "response_7.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "abc", string(data))
}
