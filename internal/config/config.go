// Package config resolves conversion settings from built-in defaults, an
// optional YAML preset and IMGQUANT_* environment variables. Command line
// flags are layered on top by the caller through Override.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted by ApplyEnv. Each also accepts a _FILE
// suffixed variant naming a file that holds the value.
const (
	EnvColors      = "IMGQUANT_COLORS"
	EnvDither      = "IMGQUANT_DITHER"
	EnvShadeLevels = "IMGQUANT_SHADE_LEVELS"
	EnvDedup       = "IMGQUANT_DEDUP"
)

// Settings are the knobs of a conversion run.
type Settings struct {
	Colors      int    `yaml:"colors"`
	Dither      string `yaml:"dither"`
	ShadeLevels int    `yaml:"shade_levels"`
	ShadeLUT    string `yaml:"shade_lut"`
	TileWidth   int    `yaml:"tile_width"`
	TileHeight  int    `yaml:"tile_height"`
	Dedup       bool   `yaml:"dedup"`
	Tilemap     string `yaml:"tilemap"`
	Palette     string `yaml:"palette"`
}

// Defaults returns the settings used when nothing else is configured.
func Defaults() Settings {
	return Settings{Colors: 256, Dither: "none"}
}

// Load returns the defaults, overlaid with the preset at path (skipped when
// path is empty) and then with the environment.
func Load(path string) (Settings, error) {
	s := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("config: %w", err)
		}
		if err := s.decode(data); err != nil {
			return s, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	s.ApplyEnv()
	return s, nil
}

// decode overlays the keys present in a YAML document. Unknown keys are an
// error so that typos in presets do not go unnoticed.
func (s *Settings) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides settings from IMGQUANT_* variables.
func (s *Settings) ApplyEnv() {
	s.Colors = GetInt(EnvColors, s.Colors)
	s.Dither = Get(EnvDither, s.Dither)
	s.ShadeLevels = GetInt(EnvShadeLevels, s.ShadeLevels)
	s.Dedup = GetBool(EnvDedup, s.Dedup)
}

// Override copies every non-zero field of o into s.
func (s *Settings) Override(o Settings) {
	if o.Colors != 0 {
		s.Colors = o.Colors
	}
	if o.Dither != "" {
		s.Dither = o.Dither
	}
	if o.ShadeLevels != 0 {
		s.ShadeLevels = o.ShadeLevels
	}
	if o.ShadeLUT != "" {
		s.ShadeLUT = o.ShadeLUT
	}
	if o.TileWidth != 0 {
		s.TileWidth = o.TileWidth
	}
	if o.TileHeight != 0 {
		s.TileHeight = o.TileHeight
	}
	if o.Dedup {
		s.Dedup = true
	}
	if o.Tilemap != "" {
		s.Tilemap = o.Tilemap
	}
	if o.Palette != "" {
		s.Palette = o.Palette
	}
}

// Tiled reports whether the output should be cut into tiles.
func (s *Settings) Tiled() bool {
	return s.TileWidth > 0 || s.TileHeight > 0
}
