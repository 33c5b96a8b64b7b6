// Package config loads the benchmark configuration. The defaults match what
// cmd/bench runs without a config file.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/i5heu/GoRingQueue/internal/testbench"
)

// Scenario is an alias for testbench.Config. This allows other programs to
// import the queue configuration without pulling in the entire testbench package.
type Scenario = testbench.Config

// Config is the bench configuration.
type Config struct {
	// Capacity is the number of slots every queue under test gets.
	Capacity uint32 `yaml:"capacity"`
	// Duration of one timed run.
	Duration time.Duration `yaml:"duration"`
	// Iterations per scenario.
	Iterations int `yaml:"iterations"`
	// Scenarios are the producer/consumer mixes to run.
	Scenarios []Scenario `yaml:"scenarios"`
	// Implementations restricts the run to these names; empty means all.
	Implementations []string `yaml:"implementations"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Capacity:   1024,
		Duration:   5 * time.Second,
		Iterations: 5,
		Scenarios: []Scenario{
			{NumProducers: 2, NumConsumers: 2},
			{NumProducers: 10, NumConsumers: 10},
			{NumProducers: 50, NumConsumers: 50},
		},
	}
}

// HighConcurrency returns the extra scenarios enabled by -high-concurrency.
func HighConcurrency() []Scenario {
	return []Scenario{
		{NumProducers: 100, NumConsumers: 100},
		{NumProducers: 250, NumConsumers: 250},
		{NumProducers: 500, NumConsumers: 500},
	}
}

// Load reads a YAML file on top of Default. Unknown keys are rejected.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads YAML from r on top of Default.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Capacity < 2:
		return fmt.Errorf("config: capacity must be at least 2, got %d", c.Capacity)
	case c.Duration <= 0:
		return fmt.Errorf("config: duration must be positive, got %s", c.Duration)
	case c.Iterations < 1:
		return fmt.Errorf("config: iterations must be at least 1, got %d", c.Iterations)
	case len(c.Scenarios) == 0:
		return errors.New("config: no scenarios")
	}
	for i, s := range c.Scenarios {
		if s.NumProducers < 1 || s.NumConsumers < 1 {
			return fmt.Errorf("config: scenario %d needs at least one producer and one consumer", i)
		}
	}
	return nil
}
