// Package config provides configuration management for the attendance engine
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	// Image normalization settings
	Normalizer NormalizerConfig `mapstructure:"normalizer"`

	// Face detection / quality gate settings
	Detection DetectionConfig `mapstructure:"detection"`

	// Tier A: embedding model settings
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Tier B: classical feature settings
	Classical ClassicalConfig `mapstructure:"classical"`

	// Tier C: raw pixel settings
	RawPixel RawPixelConfig `mapstructure:"raw_pixel"`

	// Storage settings
	Storage StorageConfig `mapstructure:"storage"`

	// Logging settings
	Logging LoggingConfig `mapstructure:"logging"`
}

// NormalizerConfig bounds and re-encodes every input image
type NormalizerConfig struct {
	MaxEdge int `mapstructure:"max_edge"` // Long-edge bound in pixels
	Quality int `mapstructure:"quality"`  // JPEG re-encode quality (1-100)
}

// DetectionConfig holds face locator / quality gate configuration
type DetectionConfig struct {
	Enabled          bool    `mapstructure:"enabled"`           // Enable the quality gate
	CascadePath      string  `mapstructure:"cascade_path"`      // Path to pigo facefinder cascade
	MinWindow        int     `mapstructure:"min_window"`        // Minimum detection window in pixels
	QualityThreshold float32 `mapstructure:"quality_threshold"` // Minimum cluster quality score
	IoUThreshold     float64 `mapstructure:"iou_threshold"`     // Cluster merge threshold
	ShiftFactor      float64 `mapstructure:"shift_factor"`      // Detection window shift per step
	ScaleFactor      float64 `mapstructure:"scale_factor"`      // Detection window scale per step
	MinAreaRatio     float64 `mapstructure:"min_area_ratio"`    // Reject faces smaller than this frame fraction
	MaxAreaRatio     float64 `mapstructure:"max_area_ratio"`    // Reject faces larger than this frame fraction
}

// EmbeddingConfig holds Tier A configuration
type EmbeddingConfig struct {
	Enabled         bool    `mapstructure:"enabled"`          // Attempt the embedding tier
	ModelsDir       string  `mapstructure:"models_dir"`       // Directory with dlib model files
	Metric          string  `mapstructure:"metric"`           // "euclidean" or "cosine"
	AcceptThreshold float64 `mapstructure:"accept_threshold"` // Confidence to auto-accept
	RejectFloor     float64 `mapstructure:"reject_floor"`     // Below this: reject outright
}

// ClassicalConfig holds Tier B configuration
type ClassicalConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	PixelSize       int     `mapstructure:"pixel_size"`     // Pixel vector grid edge
	HistogramBins   int     `mapstructure:"histogram_bins"` // Intensity histogram bins
	AcceptThreshold float64 `mapstructure:"accept_threshold"`
	RejectFloor     float64 `mapstructure:"reject_floor"`
}

// RawPixelConfig holds Tier C configuration
type RawPixelConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	GridSize        int     `mapstructure:"grid_size"` // Downsample grid edge
	AcceptThreshold float64 `mapstructure:"accept_threshold"`
	RejectFloor     float64 `mapstructure:"reject_floor"`
}

// StorageConfig holds data storage configuration
type StorageConfig struct {
	DataDir      string `mapstructure:"data_dir"`      // Directory for attendance data
	DatabasePath string `mapstructure:"database_path"` // SQLite database path
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `mapstructure:"level"` // Log level: debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path (empty = stdout)
}

// DefaultConfig returns a configuration with default values.
// The per-tier thresholds are heuristics, deliberately stricter for the
// weaker tiers; all of them are meant to be tuned through configuration.
func DefaultConfig() *Config {
	return &Config{
		Normalizer: NormalizerConfig{
			MaxEdge: 400,
			Quality: 70,
		},
		Detection: DetectionConfig{
			Enabled:          true,
			CascadePath:      "models/facefinder",
			MinWindow:        100,
			QualityThreshold: 5.0,
			IoUThreshold:     0.2,
			ShiftFactor:      0.1,
			ScaleFactor:      1.1,
			MinAreaRatio:     0.05,
			MaxAreaRatio:     0.75,
		},
		Embedding: EmbeddingConfig{
			Enabled:         true,
			ModelsDir:       "models/dlib",
			Metric:          "euclidean",
			AcceptThreshold: 60,
			RejectFloor:     40,
		},
		Classical: ClassicalConfig{
			Enabled:         true,
			PixelSize:       128,
			HistogramBins:   64,
			AcceptThreshold: 65,
			RejectFloor:     50,
		},
		RawPixel: RawPixelConfig{
			Enabled:         true,
			GridSize:        50,
			AcceptThreshold: 70,
			RejectFloor:     50,
		},
		Storage: StorageConfig{
			DataDir:      "data",
			DatabasePath: "data/attendance.db",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "",
		},
	}
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	viper.SetConfigType("yaml")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("attendance")
		viper.AddConfigPath("/etc/attendance/")
		viper.AddConfigPath("$HOME/.attendance")
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("ATTEND")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found is OK, use defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("error creating data directory: %w", err)
	}

	return cfg, nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	viper.Reset()

	viper.Set("normalizer", c.Normalizer)
	viper.Set("detection", c.Detection)
	viper.Set("embedding", c.Embedding)
	viper.Set("classical", c.Classical)
	viper.Set("raw_pixel", c.RawPixel)
	viper.Set("storage", c.Storage)
	viper.Set("logging", c.Logging)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Normalizer.MaxEdge <= 0 {
		return fmt.Errorf("normalizer max edge must be positive")
	}
	if c.Normalizer.Quality < 1 || c.Normalizer.Quality > 100 {
		return fmt.Errorf("normalizer quality must be between 1 and 100")
	}

	if c.Detection.Enabled {
		if c.Detection.MinWindow <= 0 {
			return fmt.Errorf("detection min window must be positive")
		}
		if c.Detection.MinAreaRatio < 0 || c.Detection.MaxAreaRatio > 1 ||
			c.Detection.MinAreaRatio >= c.Detection.MaxAreaRatio {
			return fmt.Errorf("invalid face area ratio bounds: %.2f-%.2f",
				c.Detection.MinAreaRatio, c.Detection.MaxAreaRatio)
		}
	}

	for _, tier := range []struct {
		name          string
		accept, floor float64
	}{
		{"embedding", c.Embedding.AcceptThreshold, c.Embedding.RejectFloor},
		{"classical", c.Classical.AcceptThreshold, c.Classical.RejectFloor},
		{"raw_pixel", c.RawPixel.AcceptThreshold, c.RawPixel.RejectFloor},
	} {
		if tier.accept < 0 || tier.accept > 100 || tier.floor < 0 || tier.floor > 100 {
			return fmt.Errorf("%s thresholds must be between 0 and 100", tier.name)
		}
		if tier.floor > tier.accept {
			return fmt.Errorf("%s reject floor %.0f exceeds accept threshold %.0f",
				tier.name, tier.floor, tier.accept)
		}
	}

	if c.Embedding.Metric != "euclidean" && c.Embedding.Metric != "cosine" {
		return fmt.Errorf("embedding metric must be \"euclidean\" or \"cosine\"")
	}

	return nil
}
