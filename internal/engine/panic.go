// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package engine

import (
	"time"

	"github.com/gildo/accentd/internal/keymap"
)

// panicWindow is the maximum spread between the first and last key of
// the combination.
const panicWindow = 500 * time.Millisecond

// panicSequence is Backspace, Escape, Enter, in order.
var panicSequence = [3]uint16{keymap.KeyBackspace, keymap.KeyEsc, keymap.KeyEnter}

// PanicDetector watches the last three key presses across all devices.
// When they spell the panic combination inside the window, the daemon
// shuts down so the user is never locked out of a grabbed keyboard.
type PanicDetector struct {
	codes [3]uint16
	times [3]time.Time
	count int
}

// NewPanicDetector creates an empty detector.
func NewPanicDetector() *PanicDetector {
	return &PanicDetector{}
}

// Observe records one key press and reports whether the panic
// combination just completed.
func (p *PanicDetector) Observe(code uint16, at time.Time) bool {
	copy(p.codes[:], p.codes[1:])
	copy(p.times[:], p.times[1:])
	p.codes[2] = code
	p.times[2] = at
	if p.count < 3 {
		p.count++
		if p.count < 3 {
			return false
		}
	}

	if p.codes != panicSequence {
		return false
	}
	return p.times[2].Sub(p.times[0]) <= panicWindow
}
