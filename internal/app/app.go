// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// Package app wires the daemon together: configuration, accent tables,
// the virtual output device, the engine, the control socket, and the
// grabbed keyboards, with ordered teardown on every exit path.
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gildo/accentd/config"
	"github.com/gildo/accentd/internal/accents"
	"github.com/gildo/accentd/internal/constants"
	"github.com/gildo/accentd/internal/control"
	"github.com/gildo/accentd/internal/device"
	"github.com/gildo/accentd/internal/engine"
	"github.com/gildo/accentd/internal/logger"
	"github.com/gildo/accentd/internal/notify"
	"github.com/gildo/accentd/internal/synth"
	"github.com/gildo/accentd/internal/tray"
	"github.com/gildo/accentd/internal/utils"
)

// RuntimeContext manages application lifecycle and shutdown signals.
type RuntimeContext struct {
	Ctx        context.Context
	Cancel     context.CancelFunc
	ShutdownCh chan os.Signal
	Logger     logger.Logger
}

// NewRuntimeContext creates a new runtime context wired to SIGINT and
// SIGTERM.
func NewRuntimeContext(log logger.Logger) *RuntimeContext {
	ctx, cancel := context.WithCancel(context.Background())
	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, os.Interrupt, syscall.SIGTERM)

	return &RuntimeContext{
		Ctx:        ctx,
		Cancel:     cancel,
		ShutdownCh: shutdownCh,
		Logger:     log,
	}
}

// App represents the daemon and its components.
type App struct {
	Runtime *RuntimeContext

	cfg      *config.Config
	locales  *accents.Registry
	synth    *synth.Synthesizer
	engine   *engine.Engine
	server   *control.Server
	devices  *device.Registry
	notifier *notify.Manager
	tray     tray.Manager
}

// NewApp creates an application instance.
func NewApp(log logger.Logger) *App {
	return &App{Runtime: NewRuntimeContext(log)}
}

// Initialize builds every component. Creating the virtual output device
// is the fatal failure here; the control socket is bound later, in
// RunAndWait.
func (a *App) Initialize(configFile string) error {
	log := a.Runtime.Logger
	log.Info("Initializing %s %s...", constants.AppName, constants.Version)

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	a.cfg = cfg

	a.locales = accents.LoadRegistry(log, constants.SystemLocaleDir, utils.GetUserLocaleDir())
	log.Info("Locales available: %s", strings.Join(a.locales.Names(), ", "))

	a.synth, err = synth.New(log)
	if err != nil {
		return fmt.Errorf("failed to create virtual keyboard: %w", err)
	}

	a.notifier = notify.NewManager(log)

	a.server = control.NewServer(utils.GetDefaultSocketPath(), a.popupSink, log)

	a.engine = engine.New(engine.Options{
		Logger:   log,
		Injector: a.synth,
		Popup:    &popupBridge{server: a.server, log: log},
		Registry: a.locales,
		Initial: engine.RuntimeState{
			ThresholdMs:    cfg.General.ThresholdMs,
			Enabled:        cfg.General.Enabled,
			ActiveLocale:   cfg.Locale.Active,
			PopupTimeoutMs: cfg.Popup.TimeoutMs,
			FontSize:       cfg.Popup.FontSize,
		},
		OnShutdown: a.onEngineShutdown,
	})

	a.devices = device.NewRegistry(log, a.engine.Events(), a.engine.Changes())

	a.tray = tray.NewManager(log, tray.Actions{
		OnToggle: func() error {
			enabled := a.engine.Toggle()
			a.tray.SetEnabledState(enabled)
			a.notifier.NotifyEnabled(enabled)
			return nil
		},
		OnQuit: a.Runtime.Cancel,
	})

	a.registerHandlers()

	log.Info("Initialization complete")
	return nil
}

// RunAndWait starts all components and blocks until shutdown.
func (a *App) RunAndWait() error {
	log := a.Runtime.Logger

	a.engine.Run()

	if err := a.server.Start(); err != nil {
		return fmt.Errorf("failed to start control server: %w", err)
	}

	if err := a.devices.Start(); err != nil {
		return fmt.Errorf("failed to start device registry: %w", err)
	}

	a.tray.Start()
	a.tray.SetEnabledState(a.cfg.General.Enabled)
	a.tray.SetLocale(a.cfg.Locale.Active)

	log.Info("%s is ready", constants.AppName)

	go func() {
		sig := <-a.Runtime.ShutdownCh
		log.Info("Shutdown signal received: %s", sig)
		a.Runtime.Cancel()
	}()

	<-a.Runtime.Ctx.Done()
	return a.Shutdown()
}

// Shutdown tears the daemon down in reverse dependency order: release
// the grabs first so the user's keyboard is never held by a dying
// process, then the virtual device, then the socket.
func (a *App) Shutdown() error {
	log := a.Runtime.Logger
	log.Info("Shutting down...")

	a.tray.Stop()
	a.devices.Stop()
	a.engine.Stop()

	if err := a.synth.Close(); err != nil {
		log.Warning("Virtual keyboard close failed: %v", err)
	}

	a.server.Stop()
	a.notifier.Close()

	log.Info("Shutdown complete")
	return nil
}

// onEngineShutdown runs when the panic combination fires or a Shutdown
// command arrives.
func (a *App) onEngineShutdown(reason string) {
	if strings.Contains(reason, "panic") {
		a.notifier.NotifyPanicShutdown()
	}
	a.Runtime.Cancel()
}

// popupBridge adapts the control server broadcast to the engine's
// popup port.
type popupBridge struct {
	server *control.Server
	log    logger.Logger
}

func (p *popupBridge) ShowPopup(base rune, variants []string, fontSize, timeoutMs uint32) error {
	return p.server.Broadcast(control.KindPopupShow, control.PopupShow{
		Base:      string(base),
		Variants:  variants,
		FontSize:  fontSize,
		TimeoutMs: timeoutMs,
	})
}

func (p *popupBridge) HidePopup() {
	if err := p.server.Broadcast(control.KindPopupHide, nil); err != nil {
		p.log.Debug("Popup hide broadcast failed: %v", err)
	}
}
