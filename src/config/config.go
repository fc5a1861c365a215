// Package config loads the YAML file that drives fitting and decoding.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"

	"github.com/LucaChot/neurostate/src/artifact"
	"github.com/LucaChot/neurostate/src/feature"
)

// Preprocessing describes the acquisition chain that produces the buffers.
// Only its consistency is checked here.
type Preprocessing struct {
	SampleRate            int     `yaml:"sample_rate"`
	DownsampledSampleRate int     `yaml:"downsampled_sample_rate"`
	FilterLowerBound      float64 `yaml:"filter_lower_bound"`
	FilterUpperBound      float64 `yaml:"filter_upper_bound"`
	WindowDuration        float64 `yaml:"window_duration"`
	WindowStepDuration    float64 `yaml:"window_step_duration"`
}

// ClockPeriod is the interval between two buffers.
func (p Preprocessing) ClockPeriod() time.Duration {
	return time.Duration(p.WindowStepDuration * float64(time.Second))
}

/*
Validate requires whole sample counts per window and per step at both
rates, and an integral downsampling factor.
*/
func (p Preprocessing) Validate() error {
	if p.SampleRate <= 0 || p.DownsampledSampleRate <= 0 {
		return errors.New("config: sample rates must be positive")
	}
	if p.WindowDuration <= 0 || p.WindowStepDuration <= 0 {
		return errors.New("config: window duration and step must be positive")
	}
	checks := []struct {
		name  string
		value float64
	}{
		{"sample_rate * window_duration", float64(p.SampleRate) * p.WindowDuration},
		{"sample_rate * window_step_duration", float64(p.SampleRate) * p.WindowStepDuration},
		{"downsampled_sample_rate * window_duration", float64(p.DownsampledSampleRate) * p.WindowDuration},
		{"downsampled_sample_rate * window_step_duration", float64(p.DownsampledSampleRate) * p.WindowStepDuration},
		{"sample_rate / downsampled_sample_rate", float64(p.SampleRate) / float64(p.DownsampledSampleRate)},
	}
	for _, c := range checks {
		if !isInteger(c.value) {
			return fmt.Errorf("config: %s = %g is not an integer", c.name, c.value)
		}
	}
	return nil
}

func isInteger(v float64) bool {
	return math.Abs(v-math.Round(v)) < 1e-6
}

type Config struct {
	Preprocessing  *Preprocessing       `yaml:"preprocessing,omitempty"`
	Band           feature.BandParams   `yaml:"band"`
	Model          artifact.Expectation `yaml:"model"`
	Artifact       string               `yaml:"artifact"`
	TrainingData   string               `yaml:"training_data,omitempty"`
	SequenceLength int                  `yaml:"sequence_length"`
	PublishAddr    string               `yaml:"publish_addr,omitempty"`
	ProfilerAddr   string               `yaml:"profiler_addr,omitempty"`
	LogLevel       string               `yaml:"log_level,omitempty"`
	S3             S3                   `yaml:"s3,omitempty"`
}

// S3 configures the client used for s3:// artifact locations.
type S3 struct {
	Region       string `yaml:"region,omitempty"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	UsePathStyle bool   `yaml:"use_path_style,omitempty"`
}

// Default fills what a config file may leave out.
func Default() Config {
	return Config{
		SequenceLength: 20,
		LogLevel:       "info",
		Model:          artifact.Expectation{NumSubstates: 1},
	}
}

func (c *Config) Validate() error {
	if err := c.Band.Validate(); err != nil {
		return err
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if c.Preprocessing != nil {
		if err := c.Preprocessing.Validate(); err != nil {
			return err
		}
	}
	if c.SequenceLength < 1 {
		return fmt.Errorf("config: sequence_length must be positive, got %d", c.SequenceLength)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Load reads path over Default and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes c as YAML, the record of the parameters a model was fit with.
func Save(path string, c *Config) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
