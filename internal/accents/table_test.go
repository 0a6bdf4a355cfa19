// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package accents

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/gildo/accentd/internal/logger"
)

func testLogger() logger.Logger {
	return logger.NewDefaultLogger(logger.ErrorLevel)
}

func TestParseTable(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "valid table",
			input: "e = [\"è\", \"é\"]\na = [\"à\"]\n",
		},
		{
			name:    "uppercase key rejected",
			input:   "E = [\"è\"]\n",
			wantErr: true,
		},
		{
			name:    "multi-letter key rejected",
			input:   "ab = [\"à\"]\n",
			wantErr: true,
		},
		{
			name:    "empty variant list rejected",
			input:   "e = []\n",
			wantErr: true,
		},
		{
			name:    "too many variants rejected",
			input:   "e = [\"1\",\"2\",\"3\",\"4\",\"5\",\"6\",\"7\",\"8\",\"9\",\"10\"]\n",
			wantErr: true,
		},
		{
			name:    "empty variant rejected",
			input:   "e = [\"\"]\n",
			wantErr: true,
		},
		{
			name:    "broken toml rejected",
			input:   "e = [\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseTable([]byte(tt.input))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseTable(%q) succeeded, want error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseTable(%q) failed: %v", tt.input, err)
			}
			if len(table) == 0 {
				t.Fatal("ParseTable returned empty table")
			}
		})
	}
}

func TestTableVariantsCaseInsensitive(t *testing.T) {
	table, err := ParseTable([]byte("e = [\"è\", \"é\"]\n"))
	if err != nil {
		t.Fatalf("ParseTable failed: %v", err)
	}
	lower := table.Variants('e')
	upper := table.Variants('E')
	if !reflect.DeepEqual(lower, upper) {
		t.Errorf("Variants('e') = %v, Variants('E') = %v, want equal", lower, upper)
	}
	if table.Variants('x') != nil {
		t.Errorf("Variants('x') = %v, want nil", table.Variants('x'))
	}
}

func TestBuiltinLocales(t *testing.T) {
	registry := LoadRegistry(testLogger())

	for _, locale := range []string{"it", "es", "fr", "de", "pt"} {
		if _, ok := registry.Get(locale); !ok {
			t.Errorf("built-in locale %q missing", locale)
		}
	}

	// The Italian table drives the documented default behavior.
	it, _ := registry.Get("it")
	want := []string{"è", "é", "ê", "ë"}
	if got := it.Variants('e'); !reflect.DeepEqual(got, want) {
		t.Errorf("it variants for e = %v, want %v", got, want)
	}
}

func TestOverlayPrecedence(t *testing.T) {
	systemDir := t.TempDir()
	userDir := t.TempDir()

	writeLocale := func(dir, name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0600); err != nil {
			t.Fatalf("write locale: %v", err)
		}
	}

	// System dir overrides the built-in "it"; user dir overrides system.
	writeLocale(systemDir, "it.toml", "e = [\"1\"]\n")
	writeLocale(systemDir, "xx.toml", "a = [\"å\"]\n")
	writeLocale(userDir, "it.toml", "e = [\"2\"]\n")

	registry := LoadRegistry(testLogger(), systemDir, userDir)

	it, ok := registry.Get("it")
	if !ok {
		t.Fatal("locale it missing after overlay")
	}
	if got := it.Variants('e'); !reflect.DeepEqual(got, []string{"2"}) {
		t.Errorf("user overlay lost: variants = %v, want [2]", got)
	}

	if _, ok := registry.Get("xx"); !ok {
		t.Error("system-dir locale xx not loaded")
	}
}

func TestMalformedOverlaySkipped(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "it.toml"), []byte("e = [\n"), 0600); err != nil {
		t.Fatalf("write locale: %v", err)
	}

	registry := LoadRegistry(testLogger(), dir)

	// Broken overlay must not shadow the working built-in.
	it, ok := registry.Get("it")
	if !ok {
		t.Fatal("locale it missing")
	}
	if len(it.Variants('e')) == 0 {
		t.Error("built-in it table lost after malformed overlay")
	}
}

func TestNamesSorted(t *testing.T) {
	registry := LoadRegistry(testLogger())
	names := registry.Names()
	for i := 1; i < len(names); i++ {
		if names[i-1] >= names[i] {
			t.Fatalf("Names() not sorted: %v", names)
		}
	}
}
