// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// Package notify sends desktop notifications over the session D-Bus.
// A missing bus or notification service is never an error worth more
// than a log line; the daemon works fine without it.
package notify

import (
	"fmt"

	dbus "github.com/godbus/dbus/v5"

	"github.com/gildo/accentd/internal/constants"
	"github.com/gildo/accentd/internal/logger"
)

const (
	notifyService   = "org.freedesktop.Notifications"
	notifyPath      = "/org/freedesktop/Notifications"
	notifyMethod    = "org.freedesktop.Notifications.Notify"
	notifyTimeoutMs = 3000
)

// Manager sends desktop notifications for daemon state changes.
type Manager struct {
	conn *dbus.Conn
	log  logger.Logger
}

// NewManager connects to the session bus. A nil connection Manager is
// returned on failure so callers can keep using it unconditionally.
func NewManager(log logger.Logger) *Manager {
	conn, err := dbus.SessionBus()
	if err != nil {
		log.Warning("Session bus unavailable, notifications disabled: %v", err)
		conn = nil
	}
	return &Manager{conn: conn, log: log}
}

// Close releases the bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		_ = m.conn.Close()
	}
}

// NotifyEnabled announces the enabled flag flipping.
func (m *Manager) NotifyEnabled(enabled bool) {
	title := constants.NotifyTitleEnabled
	if !enabled {
		title = constants.NotifyTitleDisabled
	}
	m.send(title, "", "input-keyboard")
}

// NotifyLocale announces a locale switch.
func (m *Manager) NotifyLocale(locale string) {
	m.send(constants.NotifyTitleLocale, fmt.Sprintf("Active locale: %s", locale), "preferences-desktop-locale")
}

// NotifyPanicShutdown announces the panic-combination shutdown.
func (m *Manager) NotifyPanicShutdown() {
	m.send(constants.NotifyTitleShutdown, constants.NotifyPanicMsg, "dialog-warning")
}

func (m *Manager) send(summary, body, icon string) {
	if m.conn == nil {
		return
	}
	obj := m.conn.Object(notifyService, notifyPath)
	call := obj.Call(notifyMethod, 0,
		constants.AppName,
		uint32(0),
		icon,
		summary,
		body,
		[]string{},
		map[string]dbus.Variant{},
		int32(notifyTimeoutMs),
	)
	if call.Err != nil {
		m.log.Debug("Notification failed: %v", call.Err)
	}
}
