// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package utils

import (
	"os"
	"path/filepath"

	"github.com/gildo/accentd/internal/constants"
)

// GetDefaultSocketPath resolves the control socket path. ACCENTD_SOCK
// wins; a root-run system instance uses /run, everything else /tmp.
func GetDefaultSocketPath() string {
	if path := os.Getenv(constants.SocketEnvVar); path != "" {
		return path
	}
	if os.Geteuid() == 0 {
		return constants.SystemSocketPath
	}
	return constants.FallbackSocketPath
}

// GetDefaultConfigPath returns the per-user configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(configHome(), "accentd", "config.toml")
}

// GetUserLocaleDir returns the per-user locale overlay directory.
func GetUserLocaleDir() string {
	return filepath.Join(configHome(), constants.UserLocaleDir)
}

func configHome() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return os.TempDir()
	}
	return filepath.Join(home, ".config")
}
