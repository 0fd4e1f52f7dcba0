// Package config holds viewer configuration, its defaults and validation.
package config

import (
	"errors"
	"fmt"
	"time"

	"falcomplot/internal/logging"
)

// Data modes select which pair of tree/district directories is read.
const (
	ModeInitial      = "initial"
	ModeIntermediate = "intermediate"
)

// View modes and district coloring modes.
const (
	ViewTree     = "tree"
	ViewDistrict = "district"

	ColoringColored   = "colored"
	ColoringUncolored = "uncolored"
)

// Config is the full viewer configuration.
type Config struct {
	Data     DataConfig     `mapstructure:"data"`
	Viewer   ViewerConfig   `mapstructure:"viewer"`
	Playback PlaybackConfig `mapstructure:"playback"`
	Visual   Visual         `mapstructure:"visual"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      logging.Config `mapstructure:"log"`
}

// DataConfig locates the precomputed artifacts.
type DataConfig struct {
	// Source is a directory path or an http(s) base URL.
	Source string `mapstructure:"source"`

	// Mode is "initial" or "intermediate".
	Mode string `mapstructure:"mode"`

	BlocksFile       string        `mapstructure:"blocks_file"`
	MaxProbe         int           `mapstructure:"max_probe"`
	FetchConcurrency int           `mapstructure:"fetch_concurrency"`
	HTTPTimeout      time.Duration `mapstructure:"http_timeout"`
	WatchInterval    time.Duration `mapstructure:"watch_interval"`
}

// ViewerConfig holds window and initial mode settings.
type ViewerConfig struct {
	Width    int    `mapstructure:"width"`
	Height   int    `mapstructure:"height"`
	ViewMode string `mapstructure:"view_mode"`
	Coloring string `mapstructure:"coloring"`
	FlipX    bool   `mapstructure:"flip_x"`
}

// PlaybackConfig controls animation timing.
type PlaybackConfig struct {
	AnimationDuration      time.Duration `mapstructure:"animation_duration"`
	Speed                  float64       `mapstructure:"speed"`
	HighlightFlashDuration time.Duration `mapstructure:"highlight_flash_duration"`
	HoverHighlight         time.Duration `mapstructure:"hover_highlight"`
}

// Visual holds drawing constants. Sizes are screen pixels.
type Visual struct {
	RootOuterPx    float64 `mapstructure:"root_outer_px"`
	RootInset      float64 `mapstructure:"root_inset"`
	NodeRadiusPx   float64 `mapstructure:"node_radius_px"`
	NodeStrokePx   float64 `mapstructure:"node_stroke_px"`
	FramePadding   float64 `mapstructure:"frame_padding"`
	HitRadiusPx    float64 `mapstructure:"hit_radius_px"`
	BlockLineWidth float64 `mapstructure:"block_line_width"`
	LinkLineWidth  float64 `mapstructure:"link_line_width"`
	RootLineWidth  float64 `mapstructure:"root_line_width"`

	Colors Colors `mapstructure:"colors"`
}

// Colors are CSS color strings.
type Colors struct {
	GreenFill   string `mapstructure:"green_fill"`
	GreenStroke string `mapstructure:"green_stroke"`
	RedFill     string `mapstructure:"red_fill"`
	RedStroke   string `mapstructure:"red_stroke"`
	RootFill    string `mapstructure:"root_fill"`
	RootStroke  string `mapstructure:"root_stroke"`
	LinkStroke  string `mapstructure:"link_stroke"`
	BlockFill   string `mapstructure:"block_fill"`
	BlockStroke string `mapstructure:"block_stroke"`
	Background  string `mapstructure:"background"`
}

// ServerConfig configures the static data server.
type ServerConfig struct {
	Addr      string `mapstructure:"addr"`
	AssetsDir string `mapstructure:"assets_dir"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Data: DataConfig{
			Source:           "data",
			Mode:             ModeInitial,
			BlocksFile:       "blocks.json",
			MaxProbe:         9999,
			FetchConcurrency: 8,
			HTTPTimeout:      30 * time.Second,
			WatchInterval:    2 * time.Second,
		},
		Viewer: ViewerConfig{
			Width:    1280,
			Height:   800,
			ViewMode: ViewDistrict,
			Coloring: ColoringColored,
		},
		Playback: PlaybackConfig{
			AnimationDuration:      400 * time.Millisecond,
			Speed:                  1.0,
			HighlightFlashDuration: 600 * time.Millisecond,
			HoverHighlight:         100 * time.Second,
		},
		Visual: DefaultVisual(),
		Server: ServerConfig{
			Addr: ":8080",
		},
		Log: logging.Config{
			Level:  "info",
			Format: "console",
		},
	}
}

// DefaultVisual returns the stock drawing constants.
func DefaultVisual() Visual {
	return Visual{
		RootOuterPx:    12,
		RootInset:      0.5,
		NodeRadiusPx:   2,
		NodeStrokePx:   1,
		FramePadding:   40,
		HitRadiusPx:    6,
		BlockLineWidth: 0.5,
		LinkLineWidth:  0.7,
		RootLineWidth:  1.4,
		Colors: Colors{
			GreenFill:   "#00e676",
			GreenStroke: "rgba(255,255,255,0.95)",
			RedFill:     "#ff5252",
			RedStroke:   "rgba(255,255,255,0.6)",
			RootFill:    "#ffd54f",
			RootStroke:  "#333",
			LinkStroke:  "rgba(255,255,255,0.85)",
			BlockFill:   "rgba(80,80,80,0.7)",
			BlockStroke: "rgba(180,180,180,0.9)",
			Background:  "#1e1e1e",
		},
	}
}

// Validate checks that enumerations and numeric settings are usable.
func (c *Config) Validate() error {
	var errs []error
	switch c.Data.Mode {
	case ModeInitial, ModeIntermediate:
	default:
		errs = append(errs, fmt.Errorf("data.mode: %q is not initial or intermediate", c.Data.Mode))
	}
	switch c.Viewer.ViewMode {
	case ViewTree, ViewDistrict:
	default:
		errs = append(errs, fmt.Errorf("viewer.view_mode: %q is not tree or district", c.Viewer.ViewMode))
	}
	switch c.Viewer.Coloring {
	case ColoringColored, ColoringUncolored:
	default:
		errs = append(errs, fmt.Errorf("viewer.coloring: %q is not colored or uncolored", c.Viewer.Coloring))
	}
	if c.Data.Source == "" {
		errs = append(errs, errors.New("data.source is required"))
	}
	if c.Data.MaxProbe < 1 {
		errs = append(errs, errors.New("data.max_probe must be at least 1"))
	}
	if c.Data.FetchConcurrency < 1 {
		errs = append(errs, errors.New("data.fetch_concurrency must be at least 1"))
	}
	if c.Viewer.Width <= 0 || c.Viewer.Height <= 0 {
		errs = append(errs, errors.New("viewer width and height must be positive"))
	}
	if c.Playback.AnimationDuration <= 0 {
		errs = append(errs, errors.New("playback.animation_duration must be positive"))
	}
	if c.Playback.Speed <= 0 {
		errs = append(errs, errors.New("playback.speed must be positive"))
	}
	return errors.Join(errs...)
}

// TreeDir returns the tree directory for a data mode.
func TreeDir(mode string) string {
	if mode == ModeIntermediate {
		return "int_trees"
	}
	return "trees"
}

// DistrictDir returns the district directory for a data mode.
func DistrictDir(mode string) string {
	if mode == ModeIntermediate {
		return "int_districts"
	}
	return "districts"
}
