//go:build !systray

// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package tray

import "github.com/gildo/accentd/internal/logger"

// noopManager is the default tray: it does nothing. Headless and
// service installs run without a status icon.
type noopManager struct{}

// NewManager returns the no-op tray when built without the systray tag.
func NewManager(log logger.Logger, actions Actions) Manager {
	log.Debug("Tray support not compiled in")
	return &noopManager{}
}

func (t *noopManager) Start()               {}
func (t *noopManager) SetEnabledState(bool) {}
func (t *noopManager) SetLocale(string)     {}
func (t *noopManager) Stop()                {}
