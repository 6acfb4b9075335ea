package compositor

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/slidecast/slidecast-api/internal/timeline"
)

// Static errors for the composition registry.
var (
	// ErrUnknownComposition is returned when a composition ID is not registered.
	ErrUnknownComposition = errors.New("compositor: unknown composition")
	// ErrNoCompositions is returned when a manifest defines no compositions.
	ErrNoCompositions = errors.New("compositor: manifest defines no compositions")
)

// Definition is a named, parameterized composition the external engine can
// render. The engine owns frame scheduling; the definition pins the canvas
// and delivery codec pair.
type Definition struct {
	// ID is the composition name passed to the engine.
	ID string `yaml:"id"`
	// Width and Height are the canvas dimensions in pixels.
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	// FPS is the composition frame rate. Must match the timeline model.
	FPS int `yaml:"fps"`
	// VideoCodec and AudioCodec form the fixed delivery codec pair.
	VideoCodec string `yaml:"video_codec"`
	AudioCodec string `yaml:"audio_codec"`
}

// manifest is the YAML shape of a composition manifest file.
type manifest struct {
	Compositions []Definition `yaml:"compositions"`
}

// Registry holds the named compositions available to the renderer.
type Registry struct {
	defs map[string]Definition
}

// DefaultDefinition is the built-in slide composition used when no manifest
// is configured.
func DefaultDefinition() Definition {
	return Definition{
		ID:         "slidecast",
		Width:      1920,
		Height:     1080,
		FPS:        timeline.FPS,
		VideoCodec: "h264",
		AudioCodec: "aac",
	}
}

// NewRegistry creates a registry containing only the default composition.
func NewRegistry() *Registry {
	def := DefaultDefinition()
	return &Registry{defs: map[string]Definition{def.ID: def}}
}

// LoadRegistry reads a YAML composition manifest.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path) // #nosec G304 - path comes from configuration
	if err != nil {
		return nil, fmt.Errorf("read composition manifest: %w", err)
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse composition manifest: %w", err)
	}
	if len(m.Compositions) == 0 {
		return nil, ErrNoCompositions
	}

	defs := make(map[string]Definition, len(m.Compositions))
	for _, def := range m.Compositions {
		if def.ID == "" {
			return nil, fmt.Errorf("composition manifest: composition without id")
		}
		if def.FPS == 0 {
			def.FPS = timeline.FPS
		}
		if def.VideoCodec == "" {
			def.VideoCodec = "h264"
		}
		if def.AudioCodec == "" {
			def.AudioCodec = "aac"
		}
		defs[def.ID] = def
	}

	return &Registry{defs: defs}, nil
}

// Get returns the definition registered under id.
func (r *Registry) Get(compositionID string) (Definition, error) {
	def, ok := r.defs[compositionID]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %q", ErrUnknownComposition, compositionID)
	}
	return def, nil
}
