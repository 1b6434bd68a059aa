// Package config provides unified configuration loading for socgrid.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/socgrid/socgrid/internal/attach"
	"github.com/socgrid/socgrid/internal/sampling"
)

// Config contains all socgrid configuration settings.
type Config struct {
	// Grid sets the torus dimensions every simulation starts from.
	Grid GridConfig `json:"grid" yaml:"grid"`

	// Attachment selects how new connections are proposed.
	Attachment AttachmentConfig `json:"attachment" yaml:"attachment"`

	// Growth configures runs that stop at a target geodesic.
	Growth GrowthConfig `json:"growth" yaml:"growth"`

	// Equilibrium configures the birth-death stabilization loop.
	Equilibrium EquilibriumConfig `json:"equilibrium" yaml:"equilibrium"`

	// Diffusion configures the opinion contagion process.
	Diffusion DiffusionConfig `json:"diffusion" yaml:"diffusion"`

	// Sampling configures how node attributes are drawn.
	Sampling SamplingConfig `json:"sampling" yaml:"sampling"`

	// Store is where finished runs are persisted.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// GridConfig sets the starting lattice.
type GridConfig struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// AttachmentConfig selects and tunes an attachment strategy. Only the
// fields the chosen strategy reads matter; the rest are ignored.
type AttachmentConfig struct {
	// Strategy is one of "eigen-decay", "degree-radius", "degree-exp",
	// "mutual" or "prestige-fixed".
	Strategy string `json:"strategy" yaml:"strategy"`

	// Decay is the exponential distance coefficient for eigen-decay.
	Decay float64 `json:"decay,omitempty" yaml:"decay,omitempty"`

	// Radius bounds candidate search for degree-radius, and sets the
	// stranger radius for mutual (0 disables strangers).
	Radius int `json:"radius,omitempty" yaml:"radius,omitempty"`

	// DecayKind is the distance divisor for degree-radius: "none",
	// "linear", "square" or "exponential".
	DecayKind string `json:"decay_kind,omitempty" yaml:"decay_kind,omitempty"`

	// Offset shifts the distance in the degree-exp weight.
	Offset float64 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// Build constructs the configured strategy.
func (c AttachmentConfig) Build() (attach.Strategy, error) {
	return attach.FromConfig(c.Strategy, c.Decay, c.Radius, attach.DecayKind(c.DecayKind), c.Offset)
}

// GrowthConfig configures geodesic-seeking growth.
type GrowthConfig struct {
	// TargetGeodesic is the average path length growth stops at.
	TargetGeodesic float64 `json:"target_geodesic" yaml:"target_geodesic"`

	// CheckEvery is how many attachment draws happen between geodesic
	// checks. 0 picks N/10.
	CheckEvery int `json:"check_every,omitempty" yaml:"check_every,omitempty"`

	// MaxIterations bounds the run. 0 picks 1000*N.
	MaxIterations int `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
}

// EquilibriumConfig configures the stabilization loop.
type EquilibriumConfig struct {
	// PruneProbability is the per-draw chance a random node is pruned.
	PruneProbability float64 `json:"prune_probability" yaml:"prune_probability"`

	// Epsilon is the movement running-mean threshold. 0 picks 0.001.
	Epsilon float64 `json:"epsilon,omitempty" yaml:"epsilon,omitempty"`

	// StablePasses is how many consecutive stable passes end the run.
	// 0 picks 3.
	StablePasses int `json:"stable_passes,omitempty" yaml:"stable_passes,omitempty"`

	// MaxPasses bounds the run. 0 picks 10000.
	MaxPasses int `json:"max_passes,omitempty" yaml:"max_passes,omitempty"`

	// ReconnectCap is how many anchor edges a reconnection step may
	// restore per disconnected node. 0 picks 2.
	ReconnectCap int `json:"reconnect_cap,omitempty" yaml:"reconnect_cap,omitempty"`
}

// DiffusionConfig configures the contagion process.
type DiffusionConfig struct {
	// Init is "random" or "seeded".
	Init string `json:"init" yaml:"init"`

	// Power is the exponent of the conformity weighting.
	Power float64 `json:"power" yaml:"power"`

	// SeedCount converts that many of the seed's neighbors (seeded only).
	SeedCount int `json:"seed_count,omitempty" yaml:"seed_count,omitempty"`

	// ConversionThreshold stops a seeded run early. 0 disables.
	ConversionThreshold float64 `json:"conversion_threshold,omitempty" yaml:"conversion_threshold,omitempty"`

	// MaxSteps bounds the run. 0 picks 1000*N.
	MaxSteps int `json:"max_steps,omitempty" yaml:"max_steps,omitempty"`

	// SampleEvery records a trace point every that many steps. 0 disables.
	SampleEvery int `json:"sample_every,omitempty" yaml:"sample_every,omitempty"`
}

// SamplingConfig configures attribute distributions.
type SamplingConfig struct {
	// Skew selects the Beta preset: -1 introverted, 0 symmetric,
	// 1 extraverted.
	Skew int `json:"skew" yaml:"skew"`

	// Correlation is the extraversion/conformity correlation, in (-1, 1).
	Correlation float64 `json:"correlation,omitempty" yaml:"correlation,omitempty"`
}

// StoreConfig locates the run database.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures socgrid's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	Level string `json:"level" yaml:"level"`
}

// Default returns a Config with sensible defaults: the canonical 30x30
// grid, eigenvector attachment, and the symmetric attribute preset.
func Default() *Config {
	return &Config{
		Grid: GridConfig{Width: 30, Height: 30},
		Attachment: AttachmentConfig{
			Strategy: "eigen-decay",
			Decay:    0.9,
		},
		Growth: GrowthConfig{
			TargetGeodesic: 2.5,
		},
		Equilibrium: EquilibriumConfig{
			PruneProbability: 0.1,
		},
		Diffusion: DiffusionConfig{
			Init:  "random",
			Power: 1,
		},
		Sampling: SamplingConfig{
			Skew:        0,
			Correlation: sampling.DefaultCorrelation,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from the default locations and environment
// variables. Order: defaults -> ~/.socgrid/config.yaml -> environment.
func Load() (*Config, error) {
	config := Default()

	homeDir, err := os.UserHomeDir()
	if err == nil {
		configPath := filepath.Join(homeDir, ".socgrid", "config.yaml")
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file, starting
// from the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Grid.Width <= 0 || c.Grid.Height <= 0 {
		return fmt.Errorf("grid dimensions must be positive, got %dx%d", c.Grid.Width, c.Grid.Height)
	}

	if _, err := c.Attachment.Build(); err != nil {
		return err
	}

	if c.Growth.TargetGeodesic <= 0 {
		return fmt.Errorf("target_geodesic must be positive, got %f", c.Growth.TargetGeodesic)
	}

	if c.Equilibrium.PruneProbability < 0 || c.Equilibrium.PruneProbability > 1 {
		return fmt.Errorf("prune_probability must be between 0 and 1, got %f", c.Equilibrium.PruneProbability)
	}

	if c.Diffusion.Init != "random" && c.Diffusion.Init != "seeded" {
		return fmt.Errorf("invalid diffusion init: %s (valid: random, seeded)", c.Diffusion.Init)
	}
	if c.Diffusion.Power <= 0 {
		return fmt.Errorf("diffusion power must be positive, got %f", c.Diffusion.Power)
	}

	if _, err := sampling.PresetFor(c.Sampling.Skew); err != nil {
		return err
	}
	if c.Sampling.Correlation <= -1 || c.Sampling.Correlation >= 1 {
		return fmt.Errorf("correlation must be in (-1, 1), got %f", c.Sampling.Correlation)
	}

	validLevels := map[string]bool{"info": true, "debug": true, "trace": true}
	if c.Logging.Level != "" && !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("SOCGRID_GRID_WIDTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Grid.Width = n
		}
	}
	if v := os.Getenv("SOCGRID_GRID_HEIGHT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Grid.Height = n
		}
	}

	if v := os.Getenv("SOCGRID_STRATEGY"); v != "" {
		config.Attachment.Strategy = v
	}
	if v := os.Getenv("SOCGRID_DECAY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Attachment.Decay = f
		}
	}

	if v := os.Getenv("SOCGRID_TARGET_GEODESIC"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Growth.TargetGeodesic = f
		}
	}

	if v := os.Getenv("SOCGRID_PRUNE_PROBABILITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Equilibrium.PruneProbability = f
		}
	}

	if v := os.Getenv("SOCGRID_STORE_PATH"); v != "" {
		config.Store.Path = v
	}

	if v := os.Getenv("SOCGRID_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
}
