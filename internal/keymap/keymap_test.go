// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package keymap

import "testing"

func TestBaseLetter(t *testing.T) {
	tests := []struct {
		code uint16
		want rune
		ok   bool
	}{
		{KeyA, 'a', true},
		{KeyC, 'c', true},
		{KeyE, 'e', true},
		{KeyI, 'i', true},
		{KeyN, 'n', true},
		{KeyO, 'o', true},
		{KeyS, 's', true},
		{KeyU, 'u', true},
		{KeyY, 'y', true},
		{KeyB, 0, false},
		{KeyQ, 0, false},
		{KeyEnter, 0, false},
	}
	for _, tt := range tests {
		got, ok := BaseLetter(tt.code)
		if ok != tt.ok || got != tt.want {
			t.Errorf("BaseLetter(%d) = (%q, %t), want (%q, %t)", tt.code, got, ok, tt.want, tt.ok)
		}
	}
}

func TestSelectionDigit(t *testing.T) {
	tests := []struct {
		code uint16
		want int
		ok   bool
	}{
		{Key1, 1, true},
		{Key2, 2, true},
		{Key9, 9, true},
		{Key0, 0, false},
		{KeyA, 0, false},
	}
	for _, tt := range tests {
		got, ok := SelectionDigit(tt.code)
		if ok != tt.ok || got != tt.want {
			t.Errorf("SelectionDigit(%d) = (%d, %t), want (%d, %t)", tt.code, got, ok, tt.want, tt.ok)
		}
	}
}

func TestHexDigitKey(t *testing.T) {
	for _, digit := range "0123456789abcdef" {
		if _, ok := HexDigitKey(digit); !ok {
			t.Errorf("HexDigitKey(%q) missing", digit)
		}
	}
	if _, ok := HexDigitKey('g'); ok {
		t.Error("HexDigitKey('g') should not resolve")
	}
	if code, _ := HexDigitKey('e'); code != KeyE {
		t.Errorf("HexDigitKey('e') = %d, want %d", code, KeyE)
	}
}
