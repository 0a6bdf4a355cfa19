// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// Package synth owns the virtual output keyboard. All downstream
// emission goes through the Synthesizer: verbatim pass-through of
// grabbed events, and the Backspace/codepoint sequences used to retract
// an echoed letter and type its accented variant.
package synth

import (
	"fmt"

	"github.com/gildo/accentd/internal/device"
	"github.com/gildo/accentd/internal/keymap"
	"github.com/gildo/accentd/internal/logger"
)

// EventWriter is the raw emission surface of a virtual keyboard.
// Production uses the uinput device; tests substitute a recorder.
type EventWriter interface {
	WriteKey(code uint16, value int32) error
	Sync() error
	Close() error
}

// Synthesizer emits key traffic on a virtual keyboard.
type Synthesizer struct {
	writer EventWriter
	log    logger.Logger
}

// New creates the virtual keyboard and the Synthesizer over it.
func New(log logger.Logger) (*Synthesizer, error) {
	dev, err := newUinputDevice()
	if err != nil {
		return nil, err
	}
	log.Info("Virtual keyboard created")
	return NewWithWriter(dev, log), nil
}

// NewWithWriter wraps an existing writer; used by tests.
func NewWithWriter(writer EventWriter, log logger.Logger) *Synthesizer {
	return &Synthesizer{writer: writer, log: log}
}

// Close destroys the virtual keyboard.
func (s *Synthesizer) Close() error {
	return s.writer.Close()
}

// PassThrough emits one event verbatim.
func (s *Synthesizer) PassThrough(code uint16, action device.Action) error {
	return s.emit(code, int32(action))
}

// ReplayCancelled emits a Release for a base key whose Press was
// already forwarded, keeping downstream key state consistent after an
// interrupted hold.
func (s *Synthesizer) ReplayCancelled(code uint16) error {
	return s.emit(code, int32(device.Release))
}

// EmitBackspace emits a single Backspace press and release.
func (s *Synthesizer) EmitBackspace() error {
	return s.tap(keymap.KeyBackspace)
}

// EmitCodepoint types one Unicode scalar through the Ctrl+Shift+U hex
// input method understood by GTK and IBus. Modifiers are released last;
// the exact order is Ctrl down, Shift down, U tap, hex digit taps,
// Space tap, Shift up, Ctrl up.
func (s *Synthesizer) EmitCodepoint(cp rune) error {
	if err := s.emit(keymap.KeyLeftCtrl, int32(device.Press)); err != nil {
		return err
	}
	if err := s.emit(keymap.KeyLeftShift, int32(device.Press)); err != nil {
		return err
	}
	if err := s.tap(keymap.KeyU); err != nil {
		return err
	}

	for _, digit := range fmt.Sprintf("%x", cp) {
		code, ok := keymap.HexDigitKey(digit)
		if !ok {
			return fmt.Errorf("no keycode for hex digit %q", digit)
		}
		if err := s.tap(code); err != nil {
			return err
		}
	}

	if err := s.tap(keymap.KeySpace); err != nil {
		return err
	}
	if err := s.emit(keymap.KeyLeftShift, int32(device.Release)); err != nil {
		return err
	}
	return s.emit(keymap.KeyLeftCtrl, int32(device.Release))
}

// EmitVariant types a variant string, one codepoint sequence per
// Unicode scalar. Variants are typically a single combined character.
func (s *Synthesizer) EmitVariant(variant string) error {
	for _, cp := range variant {
		if err := s.EmitCodepoint(cp); err != nil {
			return fmt.Errorf("failed to emit variant %q: %w", variant, err)
		}
	}
	return nil
}

// tap emits Press then Release of one key.
func (s *Synthesizer) tap(code uint16) error {
	if err := s.emit(code, int32(device.Press)); err != nil {
		return err
	}
	return s.emit(code, int32(device.Release))
}

// emit writes one key event followed by its sync report.
func (s *Synthesizer) emit(code uint16, value int32) error {
	if err := s.writer.WriteKey(code, value); err != nil {
		return err
	}
	return s.writer.Sync()
}
