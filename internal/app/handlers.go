// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package app

import (
	"encoding/json"

	"github.com/gildo/accentd/internal/control"
)

// registerHandlers binds the CLI command kinds to the engine.
func (a *App) registerHandlers() {
	a.server.Register(control.KindGetStatus, a.handleGetStatus)
	a.server.Register(control.KindSetLocale, a.handleSetLocale)
	a.server.Register(control.KindEnable, func(json.RawMessage) (string, any) {
		return a.applyEnabled(a.engine.SetEnabled(true))
	})
	a.server.Register(control.KindDisable, func(json.RawMessage) (string, any) {
		return a.applyEnabled(a.engine.SetEnabled(false))
	})
	a.server.Register(control.KindToggle, func(json.RawMessage) (string, any) {
		return a.applyEnabled(a.engine.Toggle())
	})
	a.server.Register(control.KindShutdown, a.handleShutdown)
}

func (a *App) handleGetStatus(json.RawMessage) (string, any) {
	snap := a.engine.Status()
	return control.KindStatus, control.Status{
		Enabled:      snap.Enabled,
		ActiveLocale: snap.ActiveLocale,
		Devices:      a.devices.Names(),
		ThresholdMs:  snap.ThresholdMs,
	}
}

func (a *App) handleSetLocale(raw json.RawMessage) (string, any) {
	var req control.SetLocale
	if err := json.Unmarshal(raw, &req); err != nil {
		return control.KindError, control.Error{Kind: control.ErrParse, Message: err.Error()}
	}
	if err := a.engine.SetLocale(req.Name); err != nil {
		return control.KindError, control.Error{Message: err.Error()}
	}
	a.tray.SetLocale(req.Name)
	a.notifier.NotifyLocale(req.Name)
	return control.KindOk, nil
}

func (a *App) applyEnabled(enabled bool) (string, any) {
	a.tray.SetEnabledState(enabled)
	a.notifier.NotifyEnabled(enabled)
	return control.KindOk, control.EnabledOk(enabled)
}

func (a *App) handleShutdown(json.RawMessage) (string, any) {
	a.engine.RequestShutdown("control plane")
	return control.KindOk, nil
}

// popupSink routes popup feedback messages into the engine.
func (a *App) popupSink(kind string, raw json.RawMessage) {
	switch kind {
	case control.KindSelection:
		var sel control.Selection
		if err := json.Unmarshal(raw, &sel); err != nil {
			a.Runtime.Logger.Debug("Bad selection payload: %v", err)
			return
		}
		a.engine.HandleSelection(int(sel.Index))
	case control.KindDismissed:
		a.engine.HandleDismissed()
	case control.KindPopupAck:
		a.engine.HandleAck()
	}
}
