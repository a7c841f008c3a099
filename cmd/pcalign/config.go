package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// config tunes the alignment pipeline. Zero values of the optional fields
// are replaced by the defaults of defaultConfig.
type config struct {
	// Sigma is the initial Welsch kernel width. Zero or negative disables
	// robust weighting.
	Sigma float32 `yaml:"sigma"`
	// SigmaDecay shrinks sigma every iteration: sigma(i) = sigma*decay^i.
	SigmaDecay float32 `yaml:"sigma_decay"`
	// SigmaMin is the lower bound of the annealed sigma.
	SigmaMin float32 `yaml:"sigma_min"`
	// MaxIteration bounds the ICP loop.
	MaxIteration int `yaml:"max_iteration"`
	// ConvergenceThresh stops the loop once the mean correspondence
	// distance improves less than this between iterations.
	ConvergenceThresh float32 `yaml:"convergence_threshold"`
	// MaxCorrespondenceDist drops pairs farther than this.
	MaxCorrespondenceDist float32 `yaml:"max_correspondence_distance"`
	// MinPairs fails an iteration finding fewer pairs.
	MinPairs int `yaml:"min_pairs"`
	// VoxelResolution downsamples both clouds before the alignment.
	// Zero disables downsampling.
	VoxelResolution float32 `yaml:"voxel_resolution"`
}

func defaultConfig() config {
	return config{
		Sigma:                 -1,
		SigmaDecay:            0.9,
		SigmaMin:              0.01,
		MaxIteration:          30,
		ConvergenceThresh:     1e-4,
		MaxCorrespondenceDist: 2,
		MinPairs:              6,
	}
}

func loadConfig(path string) (config, error) {
	cfg := defaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *config) validate() error {
	if c.MaxIteration <= 0 {
		return fmt.Errorf("max_iteration must be positive, got: %d", c.MaxIteration)
	}
	if c.MaxCorrespondenceDist <= 0 {
		return fmt.Errorf("max_correspondence_distance must be positive, got: %f", c.MaxCorrespondenceDist)
	}
	if c.MinPairs < 1 {
		return fmt.Errorf("min_pairs must be at least 1, got: %d", c.MinPairs)
	}
	if c.Sigma > 0 {
		if c.SigmaDecay <= 0 || c.SigmaDecay > 1 {
			return fmt.Errorf("sigma_decay must be in (0, 1], got: %f", c.SigmaDecay)
		}
		if c.SigmaMin <= 0 {
			return fmt.Errorf("sigma_min must be positive, got: %f", c.SigmaMin)
		}
	}
	if c.VoxelResolution < 0 {
		return fmt.Errorf("voxel_resolution must not be negative, got: %f", c.VoxelResolution)
	}
	return nil
}
