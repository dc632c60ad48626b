package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// demoConfig is the optional YAML shape for --config, letting a scenario
// run be described declaratively instead of via flags alone. Any field left
// zero falls back to the flag (or its default).
type demoConfig struct {
	Scenario    string `yaml:"scenario"`
	QuantumUsec int    `yaml:"quantum_usec"`
	Quantums    int    `yaml:"quantums"`
}

func loadConfig(path string) (demoConfig, error) {
	var cfg demoConfig
	f, err := os.Open(path)
	if err != nil {
		return cfg, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
