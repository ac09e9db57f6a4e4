package io

import (
	"context"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slok/imagegen/internal/model"
)

// ManifestYAMLRepository loads work item manifests from YAML (or JSON) files.
type ManifestYAMLRepository struct {
	fs fs.FS
}

// NewManifestYAMLRepository creates a new YAML manifest repository.
func NewManifestYAMLRepository(filesystem fs.FS) *ManifestYAMLRepository {
	return &ManifestYAMLRepository{fs: filesystem}
}

// GetManifest loads a manifest and returns its domain model. Parameters that are not
// set are left to zero, defaults are resolved when the session starts.
func (r *ManifestYAMLRepository) GetManifest(ctx context.Context, path string) (*model.Manifest, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest file: %w", err)
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w: %w", err, model.ErrNotValid)
	}

	return m.toModel(), nil
}

// Manifest represents the YAML structure of a work item manifest.
//
// Article documents with an `imagePrompts` list are accepted as is, the rest of
// their keys are ignored.
type Manifest struct {
	SessionID string     `yaml:"sessionId"`
	OutputDir string     `yaml:"outputDir"`
	Defaults  Parameters `yaml:"defaults"`
	// NegativePromptSuffix is appended to every item negative prompt.
	NegativePromptSuffix string `yaml:"negativePromptSuffix"`
	Items                []Item `yaml:"items"`
	ImagePrompts         []Item `yaml:"imagePrompts"`
}

// Item represents the YAML structure of a work item.
type Item struct {
	Position       string     `yaml:"position"`
	Prompt         string     `yaml:"prompt"`
	Style          string     `yaml:"style"`
	NegativePrompt string     `yaml:"negativePrompt"`
	Description    string     `yaml:"description"`
	Parameters     Parameters `yaml:"parameters"`
}

// Parameters represents the YAML structure of the generation parameters. The
// snake case keys are the ones used by article documents.
type Parameters struct {
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	Steps              int     `yaml:"steps"`
	NumInferenceSteps  int     `yaml:"num_inference_steps"`
	GuidanceScale      float64 `yaml:"guidanceScale"`
	GuidanceScaleSnake float64 `yaml:"guidance_scale"`
}

func (m Manifest) items() []Item {
	if len(m.Items) > 0 {
		return m.Items
	}
	return m.ImagePrompts
}

func (m Manifest) validate() error {
	if len(m.Items) > 0 && len(m.ImagePrompts) > 0 {
		return fmt.Errorf("only one of items or imagePrompts can be set")
	}

	items := m.items()
	if len(items) == 0 {
		return fmt.Errorf("at least one item is required")
	}

	if err := m.Defaults.validate(); err != nil {
		return fmt.Errorf("defaults: %w", err)
	}

	for i, it := range items {
		if it.Position == "" {
			return fmt.Errorf("item %d: position is required", i)
		}
		if strings.TrimSpace(it.Prompt) == "" {
			return fmt.Errorf("item %d (%s): prompt is required", i, it.Position)
		}
		if err := it.Parameters.validate(); err != nil {
			return fmt.Errorf("item %d (%s): %w", i, it.Position, err)
		}
	}

	return nil
}

func (m Manifest) toModel() *model.Manifest {
	items := m.items()
	mm := &model.Manifest{
		SessionID: m.SessionID,
		OutputDir: m.OutputDir,
		Defaults:  m.Defaults.toModel(),
		Items:     make([]model.WorkItem, 0, len(items)),
	}

	for _, it := range items {
		mm.Items = append(mm.Items, model.WorkItem{
			Position:       it.Position,
			Prompt:         joinPrompt(it.Prompt, it.Style),
			NegativePrompt: joinPrompt(it.NegativePrompt, m.NegativePromptSuffix),
			Parameters:     it.Parameters.toModel(),
		})
	}

	return mm
}

func (p Parameters) validate() error {
	if p.Width < 0 {
		return fmt.Errorf("width can't be negative, got: %d", p.Width)
	}
	if p.Height < 0 {
		return fmt.Errorf("height can't be negative, got: %d", p.Height)
	}
	if p.Steps != 0 && p.NumInferenceSteps != 0 && p.Steps != p.NumInferenceSteps {
		return fmt.Errorf("steps and num_inference_steps don't match")
	}
	if p.Steps < 0 || p.NumInferenceSteps < 0 {
		return fmt.Errorf("steps can't be negative")
	}
	if p.GuidanceScale < 0 || p.GuidanceScaleSnake < 0 {
		return fmt.Errorf("guidance scale can't be negative")
	}
	return nil
}

func (p Parameters) toModel() model.GenerationParameters {
	gp := model.GenerationParameters{
		Width:         p.Width,
		Height:        p.Height,
		Steps:         p.Steps,
		GuidanceScale: p.GuidanceScale,
	}
	if gp.Steps == 0 {
		gp.Steps = p.NumInferenceSteps
	}
	if gp.GuidanceScale == 0 {
		gp.GuidanceScale = p.GuidanceScaleSnake
	}
	return gp
}

func joinPrompt(base, extra string) string {
	base = strings.TrimSpace(base)
	extra = strings.TrimSpace(extra)
	switch {
	case extra == "":
		return base
	case base == "":
		return extra
	}
	return base + ", " + extra
}
