// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLockFileAcquireRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "accentd.lock")

	lock := NewLockFile(path)
	if err := lock.TryLock(); err != nil {
		t.Fatalf("TryLock failed: %v", err)
	}

	// A second holder must be refused while the first is alive.
	second := NewLockFile(path)
	if err := second.TryLock(); err == nil {
		t.Error("second TryLock succeeded, want conflict")
		_ = second.Unlock()
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	// After release the lock is free again.
	third := NewLockFile(path)
	if err := third.TryLock(); err != nil {
		t.Fatalf("TryLock after release failed: %v", err)
	}
	_ = third.Unlock()
}

func TestDefaultLockFilePlacement(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/tmp/xdg-runtime-test")
	if got := NewDefaultLockFile().Path(); got != "/tmp/xdg-runtime-test/accentd.lock" {
		t.Errorf("lock path = %q", got)
	}

	t.Setenv("XDG_RUNTIME_DIR", "")
	if got := NewDefaultLockFile().Path(); got != filepath.Join(os.TempDir(), "accentd.lock") {
		t.Errorf("fallback lock path = %q", got)
	}
}

func TestCheckExistingInstanceNoFile(t *testing.T) {
	lock := NewLockFile(filepath.Join(t.TempDir(), "accentd.lock"))
	running, pid, err := lock.CheckExistingInstance()
	if err != nil {
		t.Fatalf("CheckExistingInstance failed: %v", err)
	}
	if running || pid != 0 {
		t.Errorf("got running=%t pid=%d for missing lock file", running, pid)
	}
}
