// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

// accentctl is the command-line control client for accentd. Exit codes:
// 0 success, 1 command failed, 2 usage error, 3 daemon unreachable.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gildo/accentd/internal/control"
	"github.com/gildo/accentd/internal/utils"
)

const defaultTimeout = 5 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	var (
		socketPath string
		jsonOutput bool
		timeoutSec int
	)

	fs := flag.NewFlagSet("accentctl", flag.ContinueOnError)
	fs.StringVar(&socketPath, "socket", "", "Path to control socket (defaults to ACCENTD_SOCK or the system path)")
	fs.BoolVar(&jsonOutput, "json", false, "Print raw JSON responses")
	fs.IntVar(&timeoutSec, "timeout", 0, "Override command timeout in seconds")
	fs.Usage = func() { printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}

	if socketPath == "" {
		socketPath = utils.GetDefaultSocketPath()
	}
	timeout := defaultTimeout
	if timeoutSec > 0 {
		timeout = time.Duration(timeoutSec) * time.Second
	}

	command := strings.ToLower(rest[0])
	var (
		kind    string
		payload any
	)
	switch command {
	case "status":
		kind = control.KindGetStatus
	case "set-locale":
		if len(rest) != 2 {
			fmt.Fprintln(os.Stderr, "set-locale requires exactly one locale name")
			fs.Usage()
			return 2
		}
		kind = control.KindSetLocale
		payload = control.SetLocale{Name: rest[1]}
	case "enable":
		kind = control.KindEnable
	case "disable":
		kind = control.KindDisable
	case "toggle":
		kind = control.KindToggle
	case "shutdown":
		kind = control.KindShutdown
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", rest[0])
		fs.Usage()
		return 2
	}

	replyKind, raw, err := control.Request(socketPath, kind, payload, timeout)
	if err != nil {
		var unreachable *control.UnreachableError
		if errors.As(err, &unreachable) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 3
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if jsonOutput {
		fmt.Printf("{%q:%s}\n", replyKind, string(raw))
	}

	return printReply(command, replyKind, raw, jsonOutput)
}

func printReply(command, replyKind string, raw json.RawMessage, jsonOutput bool) int {
	switch replyKind {
	case control.KindError:
		var e control.Error
		_ = json.Unmarshal(raw, &e)
		if !jsonOutput {
			if e.Message != "" {
				fmt.Fprintf(os.Stderr, "Error: %s\n", e.Message)
			} else {
				fmt.Fprintf(os.Stderr, "Error: %s\n", e.Kind)
			}
		}
		return 1

	case control.KindStatus:
		if jsonOutput {
			return 0
		}
		var s control.Status
		if err := json.Unmarshal(raw, &s); err != nil {
			fmt.Fprintf(os.Stderr, "Error: bad status payload: %v\n", err)
			return 1
		}
		fmt.Printf("Enabled:   %t\n", s.Enabled)
		fmt.Printf("Locale:    %s\n", s.ActiveLocale)
		fmt.Printf("Threshold: %d ms\n", s.ThresholdMs)
		if len(s.Devices) == 0 {
			fmt.Println("Devices:   (none grabbed)")
		} else {
			fmt.Printf("Devices:   %s\n", strings.Join(s.Devices, ", "))
		}
		return 0

	case control.KindOk:
		if jsonOutput {
			return 0
		}
		var ok control.Ok
		_ = json.Unmarshal(raw, &ok)
		switch {
		case ok.Enabled != nil:
			fmt.Printf("Enabled: %t\n", *ok.Enabled)
		case command == "set-locale":
			fmt.Println("Locale changed.")
		case command == "shutdown":
			fmt.Println("Daemon shutting down.")
		default:
			fmt.Println("OK")
		}
		return 0

	default:
		if !jsonOutput {
			fmt.Printf("%s\n", replyKind)
		}
		return 0
	}
}

func printUsage(fs *flag.FlagSet) {
	w := fs.Output()
	fmt.Fprintf(w, "Usage: accentctl [flags] <command>\n\n")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  set-locale <name>   Switch the active accent locale")
	fmt.Fprintln(w, "  enable              Enable accent interception")
	fmt.Fprintln(w, "  disable             Disable accent interception")
	fmt.Fprintln(w, "  toggle              Flip the enabled flag")
	fmt.Fprintln(w, "  shutdown            Stop the daemon")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fs.PrintDefaults()
}
