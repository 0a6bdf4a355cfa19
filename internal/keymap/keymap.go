// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// Package keymap holds the kernel keycode tables the daemon cares
// about: the accent-eligible QWERTY letters, the selection digits, and
// the keys needed to type Unicode codepoint sequences.
package keymap

// Kernel input event keycodes (linux/input-event-codes.h).
const (
	KeyEsc       uint16 = 1
	KeyBackspace uint16 = 14
	KeyEnter     uint16 = 28
	KeyLeftCtrl  uint16 = 29
	KeyLeftShift uint16 = 42
	KeySpace     uint16 = 57

	Key1 uint16 = 2
	Key2 uint16 = 3
	Key3 uint16 = 4
	Key4 uint16 = 5
	Key5 uint16 = 6
	Key6 uint16 = 7
	Key7 uint16 = 8
	Key8 uint16 = 9
	Key9 uint16 = 10
	Key0 uint16 = 11

	KeyA uint16 = 30
	KeyB uint16 = 48
	KeyC uint16 = 46
	KeyD uint16 = 32
	KeyE uint16 = 18
	KeyF uint16 = 33
	KeyI uint16 = 23
	KeyN uint16 = 49
	KeyO uint16 = 24
	KeyQ uint16 = 16
	KeyS uint16 = 31
	KeyU uint16 = 22
	KeyY uint16 = 21
	KeyZ uint16 = 44
)

// accentEligible maps QWERTY letter positions that can carry accents.
var accentEligible = map[uint16]rune{
	KeyA: 'a',
	KeyC: 'c',
	KeyE: 'e',
	KeyI: 'i',
	KeyN: 'n',
	KeyO: 'o',
	KeyS: 's',
	KeyU: 'u',
	KeyY: 'y',
}

// BaseLetter returns the lowercase letter for an accent-eligible
// keycode. ok is false for every other key.
func BaseLetter(code uint16) (rune, bool) {
	letter, ok := accentEligible[code]
	return letter, ok
}

// SelectionDigit maps the top-row digit keys 1..9 to their 1-based
// menu index. ok is false for non-digit keys, including KEY_0.
func SelectionDigit(code uint16) (int, bool) {
	if code >= Key1 && code <= Key9 {
		return int(code-Key1) + 1, true
	}
	return 0, false
}

// hexKeys maps lowercase hex digits to their keycodes for the
// Ctrl+Shift+U codepoint sequence.
var hexKeys = map[rune]uint16{
	'0': Key0, '1': Key1, '2': Key2, '3': Key3, '4': Key4,
	'5': Key5, '6': Key6, '7': Key7, '8': Key8, '9': Key9,
	'a': KeyA, 'b': KeyB, 'c': KeyC, 'd': KeyD, 'e': KeyE, 'f': KeyF,
}

// HexDigitKey returns the keycode that types a lowercase hex digit.
func HexDigitKey(digit rune) (uint16, bool) {
	code, ok := hexKeys[digit]
	return code, ok
}
