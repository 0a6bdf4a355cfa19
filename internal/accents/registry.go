// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package accents

import (
	"embed"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gildo/accentd/internal/logger"
)

//go:embed locales/*.toml
var builtinLocales embed.FS

// Registry holds every known locale table. Built-ins are loaded first,
// then overlay directories in the given order, so a later directory
// shadows an earlier one and both shadow the built-ins.
type Registry struct {
	tables map[string]Table
	log    logger.Logger
}

// LoadRegistry builds a registry from the embedded defaults plus the
// overlay directories. A missing directory is fine; a malformed file is
// logged and skipped. The daemon never fails to start over a locale.
func LoadRegistry(log logger.Logger, overlayDirs ...string) *Registry {
	r := &Registry{
		tables: make(map[string]Table),
		log:    log,
	}

	entries, err := builtinLocales.ReadDir("locales")
	if err != nil {
		// Unreachable with a correct embed directive.
		log.Error("Failed to read embedded locales: %v", err)
	}
	for _, entry := range entries {
		data, err := builtinLocales.ReadFile(filepath.Join("locales", entry.Name()))
		if err != nil {
			log.Error("Failed to read embedded locale %s: %v", entry.Name(), err)
			continue
		}
		r.addTable(entry.Name(), data, "builtin")
	}

	for _, dir := range overlayDirs {
		r.loadDir(dir)
	}
	return r
}

// loadDir overlays every *.toml file from a directory.
func (r *Registry) loadDir(dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.log.Warning("Could not read locale directory %s: %v", dir, err)
		}
		return
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".toml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warning("Could not read locale file %s: %v", path, err)
			continue
		}
		r.addTable(entry.Name(), data, dir)
	}
}

func (r *Registry) addTable(filename string, data []byte, source string) {
	name := strings.TrimSuffix(filename, ".toml")
	table, err := ParseTable(data)
	if err != nil {
		r.log.Warning("Skipping locale %s from %s: %v", name, source, err)
		return
	}
	r.tables[name] = table
	r.log.Debug("Loaded locale %s (%d letters) from %s", name, len(table), source)
}

// Get returns the table for a locale id.
func (r *Registry) Get(locale string) (Table, bool) {
	table, ok := r.tables[locale]
	return table, ok
}

// Names returns the sorted list of known locale ids.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tables))
	for name := range r.tables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
