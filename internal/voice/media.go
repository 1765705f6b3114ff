package voice

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
)

// VoiceMessagesDir is the media subdirectory holding message audio.
const VoiceMessagesDir = "voice_messages"

// MediaStore writes audio files under a root directory served at URLPrefix.
type MediaStore struct {
	root      string
	urlPrefix string
}

// NewMediaStore returns a store rooted at root, served under urlPrefix (e.g. "/media").
func NewMediaStore(root, urlPrefix string) *MediaStore {
	return &MediaStore{root: root, urlPrefix: urlPrefix}
}

// Root returns the directory files are written to.
func (m *MediaStore) Root() string {
	return m.root
}

// Save writes data to voice_messages/name and returns the relative path.
func (m *MediaStore) Save(name string, data []byte) (string, error) {
	dir := filepath.Join(m.root, VoiceMessagesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create media directory: %w", err)
	}

	rel := path.Join(VoiceMessagesDir, filepath.Base(name))
	if err := os.WriteFile(filepath.Join(m.root, filepath.FromSlash(rel)), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write voice file: %w", err)
	}
	return rel, nil
}

// URL returns the public URL for a relative media path, or "" when rel is empty.
func (m *MediaStore) URL(rel string) string {
	if rel == "" {
		return ""
	}
	return path.Join(m.urlPrefix, rel)
}
