// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// Package tray provides an optional status icon. The real systray
// implementation is selected with the `systray` build tag; the default
// build uses a no-op manager so headless systems carry no GUI baggage.
package tray

// Manager is the tray surface the app drives.
type Manager interface {
	// Start runs the tray loop; it blocks some implementations'
	// goroutine until Stop.
	Start()
	// SetEnabledState reflects the daemon enabled flag in the menu.
	SetEnabledState(enabled bool)
	// SetLocale reflects the active locale in the menu.
	SetLocale(locale string)
	Stop()
}

// Actions are the callbacks the tray menu invokes.
type Actions struct {
	OnToggle func() error
	OnQuit   func()
}
