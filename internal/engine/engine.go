// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// Package engine drives the per-device hold/select state machines. One
// goroutine owns every machine, the runtime state, and the popup
// coordination, consuming device events, control-plane feedback, and
// timer fires strictly in order. Device events are drained before
// anything else to keep input-to-output latency down.
package engine

import (
	"fmt"
	"time"

	"github.com/gildo/accentd/internal/accents"
	"github.com/gildo/accentd/internal/device"
	"github.com/gildo/accentd/internal/keymap"
	"github.com/gildo/accentd/internal/logger"
)

// Injector is the downstream emission surface the machines drive.
// Satisfied by *synth.Synthesizer.
type Injector interface {
	PassThrough(code uint16, action device.Action) error
	ReplayCancelled(code uint16) error
	EmitBackspace() error
	EmitVariant(variant string) error
}

// PopupPort carries menu requests to the popup process. Satisfied by
// the control server broadcast. Show errors are non-fatal: the menu
// simply does not appear and the popup timeout cleans up.
type PopupPort interface {
	ShowPopup(base rune, variants []string, fontSize, timeoutMs uint32) error
	HidePopup()
}

// popupOwner records which device currently owns the global popup.
// The popup is global: at most one machine is in MenuOpen at any
// instant.
type popupOwner struct {
	id  string
	gen uint64
}

// Engine multiplexes all devices into the state machines.
type Engine struct {
	log      logger.Logger
	injector Injector
	popup    PopupPort
	registry *accents.Registry
	panics   *PanicDetector

	state    RuntimeState
	table    accents.Table
	machines map[string]*machine
	owner    *popupOwner

	events   chan device.Event
	changes  chan device.Change
	commands chan func()
	stopCh   chan struct{}
	doneCh   chan struct{}

	// onShutdown is invoked once, on a goroutine of its own started by
	// the engine goroutine, when the panic combination fires or a
	// Shutdown command arrives.
	onShutdown func(reason string)
	shutdownFn bool
}

// Options bundles the engine dependencies.
type Options struct {
	Logger     logger.Logger
	Injector   Injector
	Popup      PopupPort
	Registry   *accents.Registry
	Initial    RuntimeState
	OnShutdown func(reason string)
}

// New creates an engine. Run must be called before events flow.
func New(opts Options) *Engine {
	e := &Engine{
		log:        opts.Logger,
		injector:   opts.Injector,
		popup:      opts.Popup,
		registry:   opts.Registry,
		panics:     NewPanicDetector(),
		state:      opts.Initial,
		machines:   make(map[string]*machine),
		events:     make(chan device.Event, 256),
		changes:    make(chan device.Change, 16),
		commands:   make(chan func(), 64),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		onShutdown: opts.OnShutdown,
	}
	e.resolveTable()
	return e
}

// Events is the sink the device registry writes key events into.
func (e *Engine) Events() chan<- device.Event { return e.events }

// Changes is the sink for device add/remove notifications.
func (e *Engine) Changes() chan<- device.Change { return e.changes }

// Run starts the engine goroutine.
func (e *Engine) Run() {
	go e.loop()
}

// Stop halts the engine goroutine and waits for it to exit.
func (e *Engine) Stop() {
	select {
	case <-e.stopCh:
		return
	default:
	}
	close(e.stopCh)
	<-e.doneCh
}

func (e *Engine) loop() {
	defer close(e.doneCh)
	for {
		// Drain device events first; control and timer work waits.
		select {
		case ev := <-e.events:
			e.handleKeyEvent(ev)
			continue
		default:
		}
		select {
		case ev := <-e.events:
			e.handleKeyEvent(ev)
		case ch := <-e.changes:
			e.handleChange(ch)
		case fn := <-e.commands:
			fn()
		case <-e.stopCh:
			return
		}
	}
}

// post queues work onto the engine goroutine without waiting.
func (e *Engine) post(fn func()) {
	select {
	case e.commands <- fn:
	case <-e.stopCh:
	}
}

// do queues work and waits for it to complete.
func (e *Engine) do(fn func()) {
	done := make(chan struct{})
	select {
	case e.commands <- func() { fn(); close(done) }:
	case <-e.stopCh:
		return
	}
	select {
	case <-done:
	case <-e.stopCh:
	}
}

// ---- device lifecycle ----

func (e *Engine) handleChange(ch device.Change) {
	switch ch.Kind {
	case device.DeviceAdded:
		e.machines[ch.ID] = newMachine(ch.ID)
		e.log.Debug("Machine created for %s", ch.ID)
	case device.DeviceRemoved:
		if m, ok := e.machines[ch.ID]; ok {
			if e.owner != nil && e.owner.id == m.id {
				e.hidePopup()
				e.owner = nil
			}
			delete(e.machines, ch.ID)
			e.log.Debug("Machine dropped for %s", ch.ID)
		}
	}
}

func (e *Engine) machineFor(id string) *machine {
	m, ok := e.machines[id]
	if !ok {
		// Event raced ahead of its DeviceAdded notification.
		m = newMachine(id)
		e.machines[id] = m
	}
	return m
}

// ---- event handling ----

func (e *Engine) handleKeyEvent(ev device.Event) {
	if ev.Action == device.Press && e.panics.Observe(ev.Code, ev.Time) {
		e.log.Info("Panic combination detected")
		e.forward(ev.Code, ev.Action)
		e.requestShutdown("panic combination")
		return
	}

	m := e.machineFor(ev.Device)

	if !e.state.Enabled {
		// Disabled mode degenerates to pure pass-through.
		e.forward(ev.Code, ev.Action)
		return
	}

	switch m.state {
	case stateIdle:
		e.handleIdle(m, ev)
	case stateHeld:
		e.handleHeld(m, ev)
	case stateMenuOpen:
		e.handleMenuOpen(m, ev)
	}
}

func (e *Engine) handleIdle(m *machine, ev device.Event) {
	if m.suppressRelease[ev.Code] {
		// A digit consumed by a selection is swallowed entirely,
		// autorepeat included, until its Release arrives.
		switch ev.Action {
		case device.Repeat:
			return
		case device.Release:
			delete(m.suppressRelease, ev.Code)
			return
		}
	}

	if ev.Action == device.Press {
		if base, ok := keymap.BaseLetter(ev.Code); ok {
			if variants := e.table.Variants(base); len(variants) > 0 {
				// Zero-latency echo: the letter appears immediately and
				// is retracted later only if a variant is chosen. A
				// sibling device's hold keeps running; eviction happens
				// when one of them crosses its threshold.
				if err := e.injector.PassThrough(ev.Code, device.Press); err != nil {
					e.emitFailure(m, err)
					return
				}
				gen := m.enterHeld(ev.Code, base, variants)
				e.armHoldTimer(m.id, gen)
				return
			}
		}
	}

	e.forward(ev.Code, ev.Action)
}

func (e *Engine) handleHeld(m *machine, ev device.Event) {
	switch {
	case ev.Code == m.code && ev.Action == device.Repeat:
		// Autorepeat of the tracked key stays invisible downstream.
		return

	case ev.Code == m.code && ev.Action == device.Release:
		// Fast typing path: threshold never crossed.
		m.reset()
		e.forward(ev.Code, device.Release)

	case ev.Action == device.Press:
		// Another key cancels the hold. The tracked key is still
		// physically down; its Release arrives later in Idle and is
		// forwarded normally.
		m.reset()
		e.forward(ev.Code, device.Press)

	default:
		e.forward(ev.Code, ev.Action)
	}
}

func (e *Engine) handleMenuOpen(m *machine, ev device.Event) {
	switch {
	case ev.Code == m.code && ev.Action == device.Repeat:
		return

	case ev.Code == m.code && ev.Action == device.Release:
		// Downstream already saw a synthetic Release; swallow the
		// physical one. The echoed letter stays typed.
		e.closeMenu(m)

	case ev.Action == device.Press && ev.Code == keymap.KeyEsc:
		e.closeMenu(m)
		e.forward(ev.Code, device.Press)

	case ev.Action == device.Press:
		if index, ok := keymap.SelectionDigit(ev.Code); ok && index <= len(m.variants) {
			variant := m.variants[index-1]
			m.suppressRelease[ev.Code] = true
			e.closeMenu(m)
			e.applySelection(m, variant)
			return
		}
		// Out-of-range digits and every other key cancel the menu.
		e.closeMenu(m)
		e.forward(ev.Code, device.Press)

	default:
		e.forward(ev.Code, ev.Action)
	}
}

// applySelection retracts the echoed letter and types the variant.
func (e *Engine) applySelection(m *machine, variant string) {
	if err := e.injector.EmitBackspace(); err != nil {
		e.emitFailure(m, err)
		return
	}
	if err := e.injector.EmitVariant(variant); err != nil {
		e.emitFailure(m, err)
	}
}

// ---- timers ----

func (e *Engine) armHoldTimer(id string, gen uint64) {
	threshold := time.Duration(e.state.ThresholdMs) * time.Millisecond
	time.AfterFunc(threshold, func() {
		e.post(func() { e.onHoldTimer(id, gen) })
	})
}

func (e *Engine) armPopupTimer(id string, gen uint64) {
	timeout := time.Duration(e.state.PopupTimeoutMs) * time.Millisecond
	time.AfterFunc(timeout, func() {
		e.post(func() { e.onPopupTimeout(id, gen) })
	})
}

func (e *Engine) onHoldTimer(id string, gen uint64) {
	m, ok := e.machines[id]
	if !ok || m.state != stateHeld || m.gen != gen {
		// Stale fire after a transition; drop it.
		return
	}

	// The popup is global: evict any other menu before opening ours.
	e.cancelOtherActive(m)

	// Synthetic Release stops downstream autorepeat that may have
	// started before suppression took hold.
	if err := e.injector.PassThrough(m.code, device.Release); err != nil {
		e.emitFailure(m, err)
		return
	}

	if err := e.popup.ShowPopup(m.base, m.variants, e.state.FontSize, e.state.PopupTimeoutMs); err != nil {
		e.log.Warning("Popup show failed: %v", err)
	}
	next := m.enterMenuOpen()
	e.owner = &popupOwner{id: m.id, gen: next}
	e.armPopupTimer(m.id, next)
}

func (e *Engine) onPopupTimeout(id string, gen uint64) {
	m, ok := e.machines[id]
	if !ok || m.state != stateMenuOpen || m.gen != gen {
		return
	}
	e.log.Debug("Popup timeout on %s", id)
	e.closeMenu(m)
}

// ---- popup coordination ----

// closeMenu hides the popup and resets the machine.
func (e *Engine) closeMenu(m *machine) {
	if m.state == stateMenuOpen {
		e.hidePopup()
	}
	if e.owner != nil && e.owner.id == m.id {
		e.owner = nil
	}
	m.reset()
}

// cancelOtherActive enforces the global-popup invariant: before a
// machine crosses Held into MenuOpen, any other machine in MenuOpen is
// forced back to Idle, as if its popup timeout had fired. Sibling holds
// are left running; the second device to reach its threshold evicts
// the first's menu.
func (e *Engine) cancelOtherActive(current *machine) {
	for _, other := range e.machines {
		if other == current || other.state != stateMenuOpen {
			continue
		}
		e.log.Debug("Force-cancelling %s (state %s) for %s", other.id, other.state, current.id)
		e.closeMenu(other)
	}
}

func (e *Engine) hidePopup() {
	e.popup.HidePopup()
}

// ---- control-plane inputs ----

// HandleSelection applies the popup's numeric choice to the menu owner.
func (e *Engine) HandleSelection(index int) {
	e.do(func() {
		m := e.menuOwner()
		if m == nil {
			return
		}
		if index < 1 || index > len(m.variants) {
			e.log.Warning("Selection index %d out of range, cancelling menu", index)
			e.closeMenu(m)
			return
		}
		variant := m.variants[index-1]
		e.closeMenu(m)
		e.applySelection(m, variant)
	})
}

// HandleDismissed closes the menu after the popup reported the user
// clicked away. The echoed letter stays typed.
func (e *Engine) HandleDismissed() {
	e.do(func() {
		if m := e.menuOwner(); m != nil {
			if e.owner != nil && e.owner.id == m.id {
				e.owner = nil
			}
			m.reset()
		}
	})
}

// HandleAck records that the popup window mapped.
func (e *Engine) HandleAck() {
	e.do(func() {
		if m := e.menuOwner(); m != nil {
			m.ack = true
		}
	})
}

func (e *Engine) menuOwner() *machine {
	if e.owner == nil {
		return nil
	}
	m, ok := e.machines[e.owner.id]
	if !ok || m.state != stateMenuOpen {
		return nil
	}
	return m
}

// ---- runtime state commands ----

// Status returns a snapshot of the runtime state.
func (e *Engine) Status() StatusSnapshot {
	var snap StatusSnapshot
	e.do(func() {
		snap = StatusSnapshot{
			Enabled:      e.state.Enabled,
			ActiveLocale: e.state.ActiveLocale,
			ThresholdMs:  e.state.ThresholdMs,
		}
	})
	return snap
}

// SetLocale switches the active accent table.
func (e *Engine) SetLocale(name string) error {
	var err error
	e.do(func() {
		if _, ok := e.registry.Get(name); !ok {
			err = fmt.Errorf("unknown locale %q", name)
			return
		}
		e.state.ActiveLocale = name
		e.resolveTable()
		e.log.Info("Active locale set to %s", name)
	})
	return err
}

// SetEnabled flips the enabled flag and returns the new value. Turning
// the daemon off force-resets every machine so no timer or menu
// survives into pass-through mode.
func (e *Engine) SetEnabled(enabled bool) bool {
	var result bool
	e.do(func() {
		e.state.Enabled = enabled
		if !enabled {
			for _, m := range e.machines {
				if m.state != stateIdle {
					e.closeMenu(m)
				}
			}
		}
		result = e.state.Enabled
	})
	return result
}

// Toggle flips the enabled flag and returns the new value.
func (e *Engine) Toggle() bool {
	var result bool
	e.do(func() {
		e.state.Enabled = !e.state.Enabled
		if !e.state.Enabled {
			for _, m := range e.machines {
				if m.state != stateIdle {
					e.closeMenu(m)
				}
			}
		}
		result = e.state.Enabled
	})
	return result
}

// RequestShutdown asks the supervisor to stop the daemon.
func (e *Engine) RequestShutdown(reason string) {
	e.post(func() { e.requestShutdown(reason) })
}

func (e *Engine) requestShutdown(reason string) {
	if e.shutdownFn || e.onShutdown == nil {
		return
	}
	e.shutdownFn = true
	e.log.Info("Shutdown requested: %s", reason)
	go e.onShutdown(reason)
}

// ---- failure handling ----

// emitFailure logs a synthesizer error and force-resets the machine.
// If the tracked key's Press went downstream without a Release yet, a
// retraction Release keeps downstream state consistent.
func (e *Engine) emitFailure(m *machine, err error) {
	e.log.Error("Synthesizer emission failed: %v", err)
	if m.state == stateHeld {
		if rerr := e.injector.ReplayCancelled(m.code); rerr != nil {
			e.log.Error("Retraction release failed: %v", rerr)
		}
	}
	if m.state == stateMenuOpen {
		e.hidePopup()
	}
	if e.owner != nil && e.owner.id == m.id {
		e.owner = nil
	}
	m.reset()
}

func (e *Engine) forward(code uint16, action device.Action) {
	if err := e.injector.PassThrough(code, action); err != nil {
		e.log.Error("Pass-through failed: %v", err)
	}
}

func (e *Engine) resolveTable() {
	table, ok := e.registry.Get(e.state.ActiveLocale)
	if !ok {
		e.log.Warning("Locale %q not found, accents disabled until set-locale", e.state.ActiveLocale)
		table = accents.Table{}
	}
	e.table = table
}
