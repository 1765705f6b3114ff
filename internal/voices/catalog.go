// Package voices loads the synthesis voice catalog from YAML, keeps it in
// memory and mirrors it into the voice_profiles table.
package voices

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Categories accepted in the catalog.
var Categories = []string{"calm", "cheerful", "empathetic", "motivational", "soothing"}

// Entry is one voice of the catalog file.
type Entry struct {
	Name        string `yaml:"name"`
	VoiceID     string `yaml:"voice_id"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
	IsPremium   bool   `yaml:"is_premium"`
	Gender      string `yaml:"gender"`
	AgeRange    string `yaml:"age_range"`
	Accent      string `yaml:"accent"`
	SampleAudio string `yaml:"sample_audio"`
}

type catalogFile struct {
	Voices []*Entry `yaml:"voices"`
}

// LoadCatalog reads a catalog file. Unknown keys are rejected so typos
// surface at startup.
func LoadCatalog(path string) ([]*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read voice catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) ([]*Entry, error) {
	var file catalogFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse voice catalog: %w", err)
	}

	for i, e := range file.Voices {
		if err := e.validate(); err != nil {
			return nil, fmt.Errorf("voice catalog entry %d: %w", i, err)
		}
	}
	return file.Voices, nil
}

func (e *Entry) validate() error {
	if e.Name == "" {
		return fmt.Errorf("missing required field: name")
	}
	if e.VoiceID == "" {
		return fmt.Errorf("missing required field: voice_id")
	}
	if len(e.VoiceID) > 50 {
		return fmt.Errorf("voice_id %q longer than 50 characters", e.VoiceID)
	}
	for _, c := range Categories {
		if e.Category == c {
			return nil
		}
	}
	return fmt.Errorf("unknown category %q for voice %s", e.Category, e.VoiceID)
}
