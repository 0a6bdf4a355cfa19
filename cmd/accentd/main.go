// Copyright (c) 2025 The accentd authors
// SPDX-License-Identifier: MIT

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/gildo/accentd/config"
	"github.com/gildo/accentd/internal/app"
	"github.com/gildo/accentd/internal/constants"
	"github.com/gildo/accentd/internal/logger"
	"github.com/gildo/accentd/internal/utils"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseOptions(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if opts.version {
		fmt.Printf("%s %s\n", constants.AppName, constants.Version)
		return 0
	}

	cfg, err := config.LoadConfig(opts.configFile)
	logFile := ""
	if err == nil {
		logFile = cfg.General.LogFile
	}
	appLogger, err := logger.NewFromConfig(opts.debug, logFile)
	if err != nil {
		appLogger, _ = logger.NewFromConfig(opts.debug, "")
		appLogger.Warning("Log file unavailable: %v", err)
	}

	// Single-instance protection.
	lockFile := utils.NewDefaultLockFile()
	if isRunning, pid, err := lockFile.CheckExistingInstance(); err != nil {
		appLogger.Warning("Failed to check existing instance: %v", err)
	} else if isRunning {
		fmt.Fprintf(os.Stderr, "Another instance of accentd is already running (PID: %d)\n", pid)
		return 1
	}
	if err := lockFile.TryLock(); err != nil {
		appLogger.Error("Failed to acquire application lock: %v", err)
		return 1
	}
	defer func() {
		if err := lockFile.Unlock(); err != nil {
			appLogger.Warning("Failed to release lock: %v", err)
		}
	}()

	application := app.NewApp(appLogger)
	if err := application.Initialize(opts.configFile); err != nil {
		// Fatal startup conditions get a single-line diagnostic.
		fmt.Fprintf(os.Stderr, "accentd: %v\n", err)
		return 1
	}

	if err := application.RunAndWait(); err != nil {
		appLogger.Error("Application error: %v", err)
		return 1
	}
	return 0
}

type options struct {
	configFile string
	debug      bool
	version    bool
}

func parseOptions(args []string) (*options, error) {
	opts := &options{configFile: utils.GetDefaultConfigPath()}

	fs := flag.NewFlagSet(constants.AppName, flag.ContinueOnError)
	fs.StringVar(&opts.configFile, "config", opts.configFile, "Path to configuration file")
	fs.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&opts.version, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if remaining := fs.Args(); len(remaining) > 0 {
		fmt.Fprintf(os.Stderr, "Unknown arguments: %v\n", remaining)
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments")
	}
	return opts, nil
}
