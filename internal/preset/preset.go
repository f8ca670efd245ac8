// Package preset provides named trimming configurations for typical
// recording conditions.
package preset

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/maauso/audiotrim/internal/audio"
	"github.com/maauso/audiotrim/internal/trim"
)

// ErrUnknownPreset is returned when a preset name is not registered.
var ErrUnknownPreset = errors.New("unknown preset")

// Preset is a named set of trim parameters and output settings.
type Preset struct {
	Name         string        `json:"name" yaml:"name" validate:"required"`
	Description  string        `json:"description" yaml:"description"`
	Params       trim.Params   `json:"params" yaml:"params"`
	OutputFormat audio.Format  `json:"output_format" yaml:"output_format" validate:"oneof=mp3 wav flac"`
	Quality      audio.Quality `json:"quality" yaml:"quality"`
	Normalize    bool          `json:"normalize" yaml:"normalize"`
	Denoise      bool          `json:"denoise" yaml:"denoise"`
}

var validate = validator.New()

// Validate checks the preset's parameters and output settings.
func (p Preset) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("preset %q: %w: %s", p.Name, trim.ErrInvalidParameter, err.Error())
	}
	if err := p.Params.Validate(); err != nil {
		return fmt.Errorf("preset %q: %w", p.Name, err)
	}
	return nil
}

// builtins are the presets available without a presets file.
var builtins = []Preset{
	{
		Name:         "default",
		Description:  "Adaptive threshold with the standard pause lengths",
		Params:       trim.DefaultParams(),
		OutputFormat: audio.FormatMP3,
		Quality:      audio.DefaultQuality(),
		Normalize:    true,
	},
	{
		Name:        "podcast",
		Description: "Close-miked speech, keeps short natural pauses",
		Params: trim.Params{
			Strategy:      trim.StrategyAdaptive,
			MinSilenceMs:  400,
			ThresholdDB:   -40,
			KeepSilenceMs: 120,
			SeekStepMs:    10,
		},
		OutputFormat: audio.FormatMP3,
		Quality:      audio.Quality{Bitrate: "192k", SampleFormat: "s16"},
		Normalize:    true,
	},
	{
		Name:        "lecture",
		Description: "Room recording with long pauses between thoughts",
		Params: trim.Params{
			Strategy:      trim.StrategyFixed,
			MinSilenceMs:  1000,
			ThresholdDB:   -35,
			KeepSilenceMs: 250,
			SeekStepMs:    10,
		},
		OutputFormat: audio.FormatMP3,
		Quality:      audio.DefaultQuality(),
		Normalize:    true,
	},
	{
		Name:        "noisy",
		Description: "Distant microphone or background hum",
		Params: trim.Params{
			Strategy:      trim.StrategyHybrid,
			MinSilenceMs:  700,
			ThresholdDB:   -30,
			KeepSilenceMs: 200,
			SeekStepMs:    10,
		},
		OutputFormat: audio.FormatMP3,
		Quality:      audio.DefaultQuality(),
		Normalize:    true,
		Denoise:      true,
	},
}

// Registry holds presets by name. It is read-only after construction.
type Registry struct {
	presets map[string]Preset
}

// Builtin returns a registry containing only the built-in presets.
func Builtin() *Registry {
	r := &Registry{presets: make(map[string]Preset, len(builtins))}
	for _, p := range builtins {
		r.presets[p.Name] = p
	}
	return r
}

// Get returns the preset registered under name.
func (r *Registry) Get(name string) (Preset, error) {
	p, ok := r.presets[strings.ToLower(name)]
	if !ok {
		return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

// Default returns the "default" preset.
func (r *Registry) Default() Preset {
	p, err := r.Get("default")
	if err != nil {
		return builtins[0]
	}
	return p
}

// List returns all presets sorted by name.
func (r *Registry) List() []Preset {
	out := make([]Preset, 0, len(r.presets))
	for _, p := range r.presets {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b Preset) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// file is the on-disk layout of a presets file.
type file struct {
	Presets []filePreset `yaml:"presets"`
}

// filePreset mirrors Preset with optional flags. Zero-valued parameters
// inherit from the preset being overridden, or from "default" for new names.
type filePreset struct {
	Name         string        `yaml:"name"`
	Description  string        `yaml:"description"`
	Params       trim.Params   `yaml:"params"`
	OutputFormat audio.Format  `yaml:"output_format"`
	Quality      audio.Quality `yaml:"quality"`
	Normalize    *bool         `yaml:"normalize"`
	Denoise      *bool         `yaml:"denoise"`
}

// Load reads a YAML presets file and merges it over the built-in presets.
// An empty path returns the built-ins.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Builtin(), nil
	}
	f, err := os.Open(path) // #nosec G304 - path comes from operator configuration
	if err != nil {
		return nil, fmt.Errorf("preset: open %q: %w", path, err)
	}
	defer f.Close()

	r, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("preset: parse %q: %w", path, err)
	}
	return r, nil
}

// LoadFromReader decodes presets from r, merges them over the built-ins and
// validates every entry. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Registry, error) {
	var doc file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("preset: decode yaml: %w", err)
	}

	reg := Builtin()
	var errs []error
	for _, fp := range doc.Presets {
		name := strings.ToLower(strings.TrimSpace(fp.Name))
		if name == "" {
			errs = append(errs, errors.New("preset: entry without a name"))
			continue
		}
		base, ok := reg.presets[name]
		if !ok {
			base = reg.Default()
			base.Description = ""
		}
		p := fp.mergeInto(base)
		p.Name = name
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		reg.presets[name] = p
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return reg, nil
}

func (fp filePreset) mergeInto(p Preset) Preset {
	if fp.Description != "" {
		p.Description = fp.Description
	}
	if fp.Params.Strategy != "" {
		p.Params.Strategy = fp.Params.Strategy
	}
	if fp.Params.MinSilenceMs != 0 {
		p.Params.MinSilenceMs = fp.Params.MinSilenceMs
	}
	if fp.Params.ThresholdDB != 0 {
		p.Params.ThresholdDB = fp.Params.ThresholdDB
	}
	if fp.Params.KeepSilenceMs != 0 {
		p.Params.KeepSilenceMs = fp.Params.KeepSilenceMs
	}
	if fp.Params.SeekStepMs != 0 {
		p.Params.SeekStepMs = fp.Params.SeekStepMs
	}
	if fp.OutputFormat != "" {
		p.OutputFormat = fp.OutputFormat
	}
	if fp.Quality.Bitrate != "" {
		p.Quality.Bitrate = fp.Quality.Bitrate
	}
	if fp.Quality.SampleFormat != "" {
		p.Quality.SampleFormat = fp.Quality.SampleFormat
	}
	if fp.Normalize != nil {
		p.Normalize = *fp.Normalize
	}
	if fp.Denoise != nil {
		p.Denoise = *fp.Denoise
	}
	return p
}
