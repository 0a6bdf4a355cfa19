//go:build linux

// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package synth

import (
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/gildo/accentd/internal/constants"
)

// uinput ioctl requests and event types (linux/uinput.h, linux/input.h).
const (
	evSyn     = 0x00
	evKey     = 0x01
	synReport = 0

	uiSetEvbit   = 0x40045564
	uiSetKeybit  = 0x40045565
	uiDevCreate  = 0x5501
	uiDevDestroy = 0x5502
	uiDevSetup   = 0x405c5503

	busVirtual = 0x06
	maxKeycode = 0x2ff // KEY_MAX
)

// uinputSetup mirrors struct uinput_setup.
type uinputSetup struct {
	ID struct {
		Bustype uint16
		Vendor  uint16
		Product uint16
		Version uint16
	}
	Name      [80]byte
	FFEffects uint32
}

// inputEvent mirrors the kernel's struct input_event.
type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// uinputDevice owns the /dev/uinput virtual keyboard. It advertises
// every keycode up to maxKeycode so pass-through never hits a key the
// device cannot emit.
type uinputDevice struct {
	fd    int
	mutex sync.Mutex
	ready bool
}

// newUinputDevice creates and registers the virtual keyboard. Failure
// here is fatal for the daemon: without an output device nothing can be
// replayed downstream.
func newUinputDevice() (*uinputDevice, error) {
	fd, err := unix.Open("/dev/uinput", unix.O_WRONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open /dev/uinput: %w (is the user in the input group?)", err)
	}

	dev := &uinputDevice{fd: fd}

	if err := dev.ioctl(uiSetEvbit, evKey); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("UI_SET_EVBIT failed: %w", err)
	}
	if err := dev.ioctl(uiSetEvbit, evSyn); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("UI_SET_EVBIT failed: %w", err)
	}
	for key := uintptr(1); key <= maxKeycode; key++ {
		if err := dev.ioctl(uiSetKeybit, key); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("UI_SET_KEYBIT failed for key %d: %w", key, err)
		}
	}

	var setup uinputSetup
	setup.ID.Bustype = busVirtual
	setup.ID.Vendor = 0x1d6b
	setup.ID.Product = 0x0acc
	setup.ID.Version = 1
	copy(setup.Name[:], constants.VirtualDeviceName)

	if err := dev.ioctlPtr(uiDevSetup, unsafe.Pointer(&setup)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("UI_DEV_SETUP failed: %w", err)
	}
	if err := dev.ioctl(uiDevCreate, 0); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("UI_DEV_CREATE failed: %w", err)
	}

	// Give udev a moment to create the device node before events flow.
	time.Sleep(100 * time.Millisecond)

	dev.ready = true
	return dev, nil
}

// WriteKey emits one EV_KEY event.
func (d *uinputDevice) WriteKey(code uint16, value int32) error {
	return d.writeEvent(evKey, code, value)
}

// Sync emits a SYN_REPORT, flushing the preceding events downstream.
func (d *uinputDevice) Sync() error {
	return d.writeEvent(evSyn, synReport, 0)
}

// Close destroys the virtual device and closes the descriptor.
func (d *uinputDevice) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.ready {
		return nil
	}
	d.ready = false
	if err := d.ioctl(uiDevDestroy, 0); err != nil {
		_ = unix.Close(d.fd)
		return fmt.Errorf("UI_DEV_DESTROY failed: %w", err)
	}
	return unix.Close(d.fd)
}

func (d *uinputDevice) writeEvent(evType, code uint16, value int32) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	if !d.ready {
		return fmt.Errorf("uinput device not ready")
	}

	var tv unix.Timeval
	if err := unix.Gettimeofday(&tv); err != nil {
		return err
	}
	ev := inputEvent{Time: tv, Type: evType, Code: code, Value: value}

	buf := (*(*[unsafe.Sizeof(ev)]byte)(unsafe.Pointer(&ev)))[:]
	if _, err := unix.Write(d.fd, buf); err != nil {
		return fmt.Errorf("uinput write failed: %w", err)
	}
	return nil
}

func (d *uinputDevice) ioctl(req, val uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, val)
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *uinputDevice) ioctlPtr(req uintptr, ptr unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), req, uintptr(ptr))
	if errno != 0 {
		return errno
	}
	return nil
}
