//go:build systray

// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package tray

import (
	"fmt"

	"github.com/getlantern/systray"

	"github.com/gildo/accentd/internal/constants"
	"github.com/gildo/accentd/internal/logger"
)

// systrayManager renders the status icon through getlantern/systray.
type systrayManager struct {
	log     logger.Logger
	actions Actions

	enabledItem *systray.MenuItem
	localeItem  *systray.MenuItem
	quitItem    *systray.MenuItem

	stateCh chan func()
	stopCh  chan struct{}
}

// NewManager creates the systray-backed tray.
func NewManager(log logger.Logger, actions Actions) Manager {
	return &systrayManager{
		log:     log,
		actions: actions,
		stateCh: make(chan func(), 8),
		stopCh:  make(chan struct{}),
	}
}

func (t *systrayManager) Start() {
	go systray.Run(t.onReady, t.onExit)
}

func (t *systrayManager) onReady() {
	systray.SetTitle(constants.AppName)
	systray.SetTooltip("Press-and-hold accent menu")

	t.enabledItem = systray.AddMenuItemCheckbox("Enabled", "Toggle accent interception", true)
	t.localeItem = systray.AddMenuItem("Locale: ?", "Active accent locale")
	t.localeItem.Disable()
	systray.AddSeparator()
	t.quitItem = systray.AddMenuItem("Quit", "Stop the daemon")

	go t.menuLoop()
}

func (t *systrayManager) menuLoop() {
	for {
		select {
		case <-t.stopCh:
			return
		case fn := <-t.stateCh:
			fn()
		case <-t.enabledItem.ClickedCh:
			if t.actions.OnToggle != nil {
				if err := t.actions.OnToggle(); err != nil {
					t.log.Warning("Tray toggle failed: %v", err)
				}
			}
		case <-t.quitItem.ClickedCh:
			if t.actions.OnQuit != nil {
				t.actions.OnQuit()
			}
		}
	}
}

func (t *systrayManager) SetEnabledState(enabled bool) {
	t.update(func() {
		if t.enabledItem == nil {
			return
		}
		if enabled {
			t.enabledItem.Check()
		} else {
			t.enabledItem.Uncheck()
		}
	})
}

func (t *systrayManager) SetLocale(locale string) {
	t.update(func() {
		if t.localeItem != nil {
			t.localeItem.SetTitle(fmt.Sprintf("Locale: %s", locale))
		}
	})
}

func (t *systrayManager) update(fn func()) {
	select {
	case t.stateCh <- fn:
	default:
	}
}

func (t *systrayManager) Stop() {
	close(t.stopCh)
	systray.Quit()
}

func (t *systrayManager) onExit() {}
