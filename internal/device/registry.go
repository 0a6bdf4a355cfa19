//go:build linux

// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package device

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	evdev "github.com/holoplot/go-evdev"

	"github.com/gildo/accentd/internal/constants"
	"github.com/gildo/accentd/internal/keymap"
	"github.com/gildo/accentd/internal/logger"
)

const rescanInterval = 2 * time.Second

// handle is one grabbed keyboard with its reader goroutine.
type handle struct {
	id   string
	name string
	dev  *evdev.InputDevice
}

// Registry enumerates /dev/input/event* keyboards, grabs them
// exclusively, and watches for hotplug by periodic rescan. Closing a
// descriptor releases its grab unconditionally, so there is no ungrab
// path to get wrong on errors.
type Registry struct {
	log     logger.Logger
	events  chan<- Event
	changes chan<- Change

	mutex    sync.Mutex
	handles  map[string]*handle
	order    []string // insertion order, for reverse-order shutdown
	stopCh   chan struct{}
	stopping int32
	wg       sync.WaitGroup
	running  bool
}

// NewRegistry creates a registry that publishes key events and device
// changes on the given channels.
func NewRegistry(log logger.Logger, events chan<- Event, changes chan<- Change) *Registry {
	return &Registry{
		log:     log,
		events:  events,
		changes: changes,
		handles: make(map[string]*handle),
		stopCh:  make(chan struct{}),
	}
}

// Start performs the initial scan and launches the hotplug watcher.
// Finding zero keyboards is not an error; hotplug may add one later.
func (r *Registry) Start() error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.running {
		return fmt.Errorf("device registry already started")
	}
	r.stopCh = make(chan struct{})
	atomic.StoreInt32(&r.stopping, 0)
	r.running = true

	added := r.scanLocked()
	if added == 0 {
		r.log.Warning("No keyboard devices found at startup")
	}

	r.wg.Add(1)
	go r.watchHotplug()
	return nil
}

// Stop closes every grabbed device in reverse order of addition and
// waits for the reader goroutines to drain.
func (r *Registry) Stop() {
	r.mutex.Lock()
	if !r.running {
		r.mutex.Unlock()
		return
	}
	atomic.StoreInt32(&r.stopping, 1)
	close(r.stopCh)

	for i := len(r.order) - 1; i >= 0; i-- {
		if h, ok := r.handles[r.order[i]]; ok {
			if err := h.dev.Close(); err != nil {
				r.log.Warning("Device close (ignored): %v", err)
			}
		}
	}
	r.handles = make(map[string]*handle)
	r.order = nil
	r.running = false
	r.mutex.Unlock()

	// Readers can block in ReadOne for a moment after Close.
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		r.log.Info("Device readers stopped cleanly")
	case <-time.After(500 * time.Millisecond):
		r.log.Warning("Device reader stop timeout (500ms)")
	}
}

// Names returns the human-readable names of all grabbed devices.
func (r *Registry) Names() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	names := make([]string, 0, len(r.handles))
	for _, h := range r.handles {
		names = append(names, h.name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) watchHotplug() {
	defer r.wg.Done()

	ticker := time.NewTicker(rescanInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.mutex.Lock()
			if r.running {
				r.scanLocked()
			}
			r.mutex.Unlock()
		}
	}
}

// scanLocked opens and grabs every keyboard not already held. Removals
// are noticed by the readers themselves: a read on an unplugged device
// errors out and drops the handle.
func (r *Registry) scanLocked() int {
	paths, err := filepath.Glob("/dev/input/event*")
	if err != nil {
		r.log.Error("Failed to list input devices: %v", err)
		return 0
	}

	added := 0
	for _, path := range paths {
		if _, ok := r.handles[path]; ok {
			continue
		}
		if r.openAndGrab(path) {
			added++
		}
	}
	return added
}

// openAndGrab claims a single device. Any failure logs and skips the
// device; the daemon keeps running with whatever it could grab.
func (r *Registry) openAndGrab(path string) bool {
	dev, err := evdev.Open(path)
	if err != nil {
		r.log.Debug("Could not open input device %s: %v", path, err)
		return false
	}

	name, _ := dev.Name()
	if !isKeyboard(dev) || strings.Contains(name, constants.VirtualDeviceName) {
		if err := dev.Close(); err != nil {
			r.log.Warning("Device close (ignored): %v", err)
		}
		return false
	}

	if err := dev.Grab(); err != nil {
		r.log.Warning("Could not grab %s (%s): %v", name, path, err)
		if err := dev.Close(); err != nil {
			r.log.Warning("Device close (ignored): %v", err)
		}
		return false
	}

	h := &handle{id: path, name: name, dev: dev}
	r.handles[path] = h
	r.order = append(r.order, path)
	r.log.Info("Grabbed keyboard %s (%s)", name, path)

	r.changes <- Change{Kind: DeviceAdded, ID: h.id, Name: h.name}
	r.wg.Add(1)
	go r.readDevice(h)
	return true
}

// readDevice pumps one device until a read error or shutdown. Non-key
// events (SYN, MSC, LED) are discarded here so the engine only sees key
// traffic.
func (r *Registry) readDevice(h *handle) {
	defer r.wg.Done()

	for {
		event, err := h.dev.ReadOne()
		if err != nil {
			if atomic.LoadInt32(&r.stopping) == 1 {
				return
			}
			r.log.Warning("Device %s read ended: %v", h.name, err)
			r.dropDevice(h)
			return
		}
		if event.Type != evdev.EV_KEY {
			continue
		}
		r.events <- Event{
			Device: h.id,
			Code:   uint16(event.Code),
			Action: Action(event.Value),
			Time:   time.Now(),
		}
	}
}

// dropDevice removes a dead handle after a read failure. The close
// releases the grab even when the underlying device is already gone.
func (r *Registry) dropDevice(h *handle) {
	r.mutex.Lock()
	if _, ok := r.handles[h.id]; !ok {
		r.mutex.Unlock()
		return
	}
	delete(r.handles, h.id)
	for i, id := range r.order {
		if id == h.id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mutex.Unlock()

	if err := h.dev.Close(); err != nil {
		r.log.Debug("Device close (ignored): %v", err)
	}

	if atomic.LoadInt32(&r.stopping) == 0 {
		r.changes <- Change{Kind: DeviceRemoved, ID: h.id, Name: h.name}
		r.log.Info("Released keyboard %s (%s)", h.name, h.id)
	}
}

// isKeyboard checks whether a device exposes key events plus the
// common letter keycodes, and is not a pointer. The presence of Q/A/Z
// and space strongly indicates a keyboard.
func isKeyboard(dev *evdev.InputDevice) bool {
	hasKeyType := false
	for _, evType := range dev.CapableTypes() {
		switch evType {
		case evdev.EV_ABS, evdev.EV_REL:
			return false
		case evdev.EV_KEY:
			hasKeyType = true
		}
	}
	if !hasKeyType {
		return false
	}

	letters := map[uint16]bool{
		keymap.KeyQ:     true,
		keymap.KeyA:     true,
		keymap.KeyZ:     true,
		keymap.KeySpace: true,
	}
	for _, code := range dev.CapableEvents(evdev.EV_KEY) {
		if letters[uint16(code)] {
			return true
		}
	}
	return false
}
