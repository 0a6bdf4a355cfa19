// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package constants

// AppName is the canonical application name used for notifications,
// the tray, and the virtual device label.
const AppName = "accentd"

// Version is stamped by the build; "dev" when built from source.
var Version = "dev"

// VirtualDeviceName is the uinput device name the daemon registers.
// The device registry skips devices with this name so the daemon never
// grabs its own output.
const VirtualDeviceName = "accentd virtual keyboard"

// Socket defaults; ACCENTD_SOCK overrides both.
const (
	SystemSocketPath   = "/run/accentd.sock"
	FallbackSocketPath = "/tmp/accentd.sock"
	SocketEnvVar       = "ACCENTD_SOCK"
)

// Locale overlay directories. Files in the user directory shadow files
// in the system directory, which shadow the built-in tables.
const (
	SystemLocaleDir = "/usr/share/accentd/locales"
	UserLocaleDir   = "accentd/locales" // relative to XDG_CONFIG_HOME
)

// Notification strings.
const (
	NotifyTitleEnabled  = "Accents enabled"
	NotifyTitleDisabled = "Accents disabled"
	NotifyTitleLocale   = "Locale changed"
	NotifyTitleShutdown = "accentd stopped"
	NotifyPanicMsg      = "Panic combination pressed, daemon shut down"
)
