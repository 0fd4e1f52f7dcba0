package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix for every setting, e.g.
// FALCOMPLOT_DATA_SOURCE.
const envPrefix = "FALCOMPLOT"

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v, Default())
	return v
}

// setDefaults registers every key so environment overrides resolve even when
// no config file mentions them.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("data.source", d.Data.Source)
	v.SetDefault("data.mode", d.Data.Mode)
	v.SetDefault("data.blocks_file", d.Data.BlocksFile)
	v.SetDefault("data.max_probe", d.Data.MaxProbe)
	v.SetDefault("data.fetch_concurrency", d.Data.FetchConcurrency)
	v.SetDefault("data.http_timeout", d.Data.HTTPTimeout)
	v.SetDefault("data.watch_interval", d.Data.WatchInterval)

	v.SetDefault("viewer.width", d.Viewer.Width)
	v.SetDefault("viewer.height", d.Viewer.Height)
	v.SetDefault("viewer.view_mode", d.Viewer.ViewMode)
	v.SetDefault("viewer.coloring", d.Viewer.Coloring)
	v.SetDefault("viewer.flip_x", d.Viewer.FlipX)

	v.SetDefault("playback.animation_duration", d.Playback.AnimationDuration)
	v.SetDefault("playback.speed", d.Playback.Speed)
	v.SetDefault("playback.highlight_flash_duration", d.Playback.HighlightFlashDuration)
	v.SetDefault("playback.hover_highlight", d.Playback.HoverHighlight)

	vis := d.Visual
	v.SetDefault("visual.root_outer_px", vis.RootOuterPx)
	v.SetDefault("visual.root_inset", vis.RootInset)
	v.SetDefault("visual.node_radius_px", vis.NodeRadiusPx)
	v.SetDefault("visual.node_stroke_px", vis.NodeStrokePx)
	v.SetDefault("visual.frame_padding", vis.FramePadding)
	v.SetDefault("visual.hit_radius_px", vis.HitRadiusPx)
	v.SetDefault("visual.block_line_width", vis.BlockLineWidth)
	v.SetDefault("visual.link_line_width", vis.LinkLineWidth)
	v.SetDefault("visual.root_line_width", vis.RootLineWidth)
	v.SetDefault("visual.colors.green_fill", vis.Colors.GreenFill)
	v.SetDefault("visual.colors.green_stroke", vis.Colors.GreenStroke)
	v.SetDefault("visual.colors.red_fill", vis.Colors.RedFill)
	v.SetDefault("visual.colors.red_stroke", vis.Colors.RedStroke)
	v.SetDefault("visual.colors.root_fill", vis.Colors.RootFill)
	v.SetDefault("visual.colors.root_stroke", vis.Colors.RootStroke)
	v.SetDefault("visual.colors.link_stroke", vis.Colors.LinkStroke)
	v.SetDefault("visual.colors.block_fill", vis.Colors.BlockFill)
	v.SetDefault("visual.colors.block_stroke", vis.Colors.BlockStroke)
	v.SetDefault("visual.colors.background", vis.Colors.Background)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.assets_dir", d.Server.AssetsDir)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Load reads an optional .env file, the config file at path (skipped when
// empty) and FALCOMPLOT_* environment overrides, then validates the result.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", path, err)
		}
	}
	return unmarshal(v)
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads path into the environment when it exists. Variables that
// are already set win.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("config: load %s: %w", path, err)
	}
	return nil
}
