package voices

import (
	"fmt"
	"log/slog"
	"sort"
)

// Registry holds the catalog in memory, indexed by voice id.
type Registry struct {
	voices map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{voices: make(map[string]*Entry)}
}

// Register adds a voice. Voice ids must be unique.
func (r *Registry) Register(e *Entry) error {
	if _, exists := r.voices[e.VoiceID]; exists {
		return fmt.Errorf("voice already registered: %s", e.VoiceID)
	}
	r.voices[e.VoiceID] = e
	return nil
}

// Get looks a voice up by id.
func (r *Registry) Get(voiceID string) (*Entry, bool) {
	e, ok := r.voices[voiceID]
	return e, ok
}

// Has reports whether voiceID names a catalog voice.
func (r *Registry) Has(voiceID string) bool {
	_, ok := r.voices[voiceID]
	return ok
}

// List returns every voice sorted by name, then id.
func (r *Registry) List() []*Entry {
	out := make([]*Entry, 0, len(r.voices))
	for _, e := range r.voices {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].VoiceID < out[j].VoiceID
	})
	return out
}

// Count returns the number of voices.
func (r *Registry) Count() int {
	return len(r.voices)
}

// LoadRegistry reads the catalog at path into a new registry. Duplicate
// voice ids are logged and skipped.
func LoadRegistry(path string) (*Registry, error) {
	entries, err := LoadCatalog(path)
	if err != nil {
		return nil, err
	}

	registry := NewRegistry()
	for _, e := range entries {
		if err := registry.Register(e); err != nil {
			slog.Warn("Duplicate voice id, skipping", "voice_id", e.VoiceID, "error", err)
		}
	}
	return registry, nil
}
