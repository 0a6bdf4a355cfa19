// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package engine

import (
	"testing"
	"time"

	"github.com/gildo/accentd/internal/keymap"
)

func TestPanicCombinationFires(t *testing.T) {
	p := NewPanicDetector()
	base := time.Now()

	if p.Observe(keymap.KeyBackspace, base) {
		t.Fatal("fired after one key")
	}
	if p.Observe(keymap.KeyEsc, base.Add(100*time.Millisecond)) {
		t.Fatal("fired after two keys")
	}
	if !p.Observe(keymap.KeyEnter, base.Add(400*time.Millisecond)) {
		t.Fatal("did not fire on Backspace, Escape, Enter within window")
	}
}

func TestPanicWindowExpired(t *testing.T) {
	p := NewPanicDetector()
	base := time.Now()

	p.Observe(keymap.KeyBackspace, base)
	p.Observe(keymap.KeyEsc, base.Add(200*time.Millisecond))
	if p.Observe(keymap.KeyEnter, base.Add(700*time.Millisecond)) {
		t.Fatal("fired outside the 500ms window")
	}
}

func TestPanicWrongOrder(t *testing.T) {
	p := NewPanicDetector()
	base := time.Now()

	p.Observe(keymap.KeyEsc, base)
	p.Observe(keymap.KeyBackspace, base.Add(50*time.Millisecond))
	if p.Observe(keymap.KeyEnter, base.Add(100*time.Millisecond)) {
		t.Fatal("fired on wrong order")
	}
}

func TestPanicRecoversAfterNoise(t *testing.T) {
	p := NewPanicDetector()
	base := time.Now()

	p.Observe(keymap.KeyBackspace, base)
	p.Observe(keymap.KeyEsc, base.Add(50*time.Millisecond))
	p.Observe(keymap.KeyA, base.Add(100*time.Millisecond))

	// A fresh, complete sequence still fires.
	p.Observe(keymap.KeyBackspace, base.Add(150*time.Millisecond))
	p.Observe(keymap.KeyEsc, base.Add(200*time.Millisecond))
	if !p.Observe(keymap.KeyEnter, base.Add(250*time.Millisecond)) {
		t.Fatal("did not fire after noise then clean sequence")
	}
}
