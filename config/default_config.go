// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package config

// Documented defaults for every field.
const (
	DefaultThresholdMs  = 300
	DefaultPopupTimeout = 5000
	DefaultFontSize     = 24
	DefaultLocale       = "it"
)

// SetDefaultConfig sets default values
func SetDefaultConfig(config *Config) {
	config.General.ThresholdMs = DefaultThresholdMs
	config.General.Enabled = true
	config.General.Debug = false
	config.General.LogFile = ""

	config.Popup.FontSize = DefaultFontSize
	config.Popup.TimeoutMs = DefaultPopupTimeout

	config.Locale.Active = DefaultLocale
}
