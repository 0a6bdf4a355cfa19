// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"strings"
)

// Bounds for corrected fields. A threshold shorter than the kernel's
// first autorepeat delay would open menus on normal typing.
const (
	minThresholdMs = 100
	maxThresholdMs = 5000
	minTimeoutMs   = 500
	maxTimeoutMs   = 60000
	minFontSize    = 8
	maxFontSize    = 96
)

// ValidateConfig checks the configuration for correctness and corrects
// out-of-range values in place. The returned error describes what was
// corrected; the config is always usable afterwards.
func ValidateConfig(config *Config) error {
	var corrections []string

	if config.General.ThresholdMs < minThresholdMs || config.General.ThresholdMs > maxThresholdMs {
		corrections = append(corrections,
			fmt.Sprintf("threshold_ms %d out of range [%d..%d], using %d",
				config.General.ThresholdMs, minThresholdMs, maxThresholdMs, DefaultThresholdMs))
		config.General.ThresholdMs = DefaultThresholdMs
	}

	if config.Popup.TimeoutMs < minTimeoutMs || config.Popup.TimeoutMs > maxTimeoutMs {
		corrections = append(corrections,
			fmt.Sprintf("popup timeout_ms %d out of range [%d..%d], using %d",
				config.Popup.TimeoutMs, minTimeoutMs, maxTimeoutMs, DefaultPopupTimeout))
		config.Popup.TimeoutMs = DefaultPopupTimeout
	}

	if config.Popup.FontSize < minFontSize || config.Popup.FontSize > maxFontSize {
		corrections = append(corrections,
			fmt.Sprintf("font_size %d out of range [%d..%d], using %d",
				config.Popup.FontSize, minFontSize, maxFontSize, DefaultFontSize))
		config.Popup.FontSize = DefaultFontSize
	}

	if strings.TrimSpace(config.Locale.Active) == "" {
		corrections = append(corrections, fmt.Sprintf("empty locale, using %q", DefaultLocale))
		config.Locale.Active = DefaultLocale
	}

	if len(corrections) > 0 {
		return fmt.Errorf("%s", strings.Join(corrections, "; "))
	}
	return nil
}
