// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// Package config loads and validates the daemon configuration from
// ~/.config/accentd/config.toml. All fields are optional; missing or
// broken configuration falls back to documented defaults and is never
// fatal.
package config

import (
	"log"
	"os"

	"github.com/BurntSushi/toml"
)

// Config structure for storing application configuration
type Config struct {
	// General settings
	General struct {
		ThresholdMs uint32 `toml:"threshold_ms"` // Hold time before the menu opens
		Enabled     bool   `toml:"enabled"`
		Debug       bool   `toml:"debug"`
		LogFile     string `toml:"log_file"`
	} `toml:"general"`

	// Popup settings
	Popup struct {
		FontSize  uint32 `toml:"font_size"`
		TimeoutMs uint32 `toml:"timeout_ms"` // Menu auto-close after inactivity
	} `toml:"popup"`

	// Locale settings
	Locale struct {
		Active string `toml:"active"`
	} `toml:"locale"`
}

// LoadConfig loads configuration from file
func LoadConfig(filename string) (*Config, error) {
	var config Config

	// Set default values
	SetDefaultConfig(&config)

	data, err := os.ReadFile(filename)
	if err != nil {
		log.Printf("Warning: could not read config file: %v", err)
		log.Println("Using default configuration")
		return &config, nil
	}

	if err := toml.Unmarshal(data, &config); err != nil {
		log.Printf("Warning: could not parse config file: %v", err)
		log.Println("Using default configuration")
		SetDefaultConfig(&config)
		return &config, nil
	}

	// Validate configuration, correcting out-of-range values
	if err := ValidateConfig(&config); err != nil {
		log.Printf("Configuration validation error: %v", err)
		log.Println("Using validated configuration with corrections")
	}

	return &config, nil
}

// SaveConfig writes the configuration to the specified file.
func SaveConfig(filename string, config *Config) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(config)
}
