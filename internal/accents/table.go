// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// Package accents maps base letters to their accented variants. Tables
// come from built-in defaults overlaid by TOML files on disk; lookups
// are plain map reads so the engine never touches the filesystem on the
// hot path.
package accents

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/BurntSushi/toml"
)

// MaxVariants is the user-facing selection limit: digits 1..9.
const MaxVariants = 9

// Table maps a lowercase base letter to its ordered variant list.
// Variants are 1-indexed from the user's point of view.
type Table map[rune][]string

// Variants returns the ordered variants for a base letter, or nil when
// the letter has none. The lookup is case-insensitive on input.
func (t Table) Variants(base rune) []string {
	return t[unicode.ToLower(base)]
}

// ParseTable decodes a locale TOML document. The format is flat: each
// top-level key is a lowercase base letter mapped to an ordered array of
// variant strings. Invalid entries fail the whole document so a broken
// file never half-loads.
func ParseTable(data []byte) (Table, error) {
	var raw map[string][]string
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse locale table: %w", err)
	}

	table := make(Table, len(raw))
	for key, variants := range raw {
		base, size := utf8.DecodeRuneInString(key)
		if size != len(key) || !unicode.IsLower(base) {
			return nil, fmt.Errorf("locale key %q is not a single lowercase letter", key)
		}
		if len(variants) == 0 || len(variants) > MaxVariants {
			return nil, fmt.Errorf("letter %q has %d variants, want 1..%d", key, len(variants), MaxVariants)
		}
		for i, v := range variants {
			if v == "" || !utf8.ValidString(v) {
				return nil, fmt.Errorf("letter %q variant %d is not valid UTF-8", key, i+1)
			}
		}
		table[base] = variants
	}
	return table, nil
}
