// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Command folio serves the catalog API and runs catalog maintenance tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/olegiv/folio-go/internal/version"
)

// Version information - injected at build time via ldflags
var (
	appVersion   = "dev"
	appGitCommit = "unknown"
	appBuildTime = "unknown"
)

// versionInfo returns the build information of the binary.
func versionInfo() version.Info {
	return version.Info{
		Version:   appVersion,
		GitCommit: appGitCommit,
		BuildTime: appBuildTime,
	}
}

type options struct {
	Version bool `short:"v" long:"version" description:"Show version information and exit"`

	Serve      serveCommand      `command:"serve" description:"Run the HTTP API server"`
	Migrate    migrateCommand    `command:"migrate" description:"Apply database migrations"`
	List       listCommand       `command:"list" description:"Page through a catalog kind"`
	Duplicates duplicatesCommand `command:"duplicates" description:"Report or purge duplicate records"`
	Snapshot   snapshotCommand   `command:"snapshot" description:"Rebuild the offline fallback dataset"`
	HashToken  hashTokenCommand  `command:"hash-token" description:"Print the argon2id hash of an admin token"`
}

// rootCtx is cancelled on SIGINT or SIGTERM. Commands derive from it.
var rootCtx = context.Background()

func main() {
	os.Exit(run())
}

func newParser(opts *options) *flags.Parser {
	parser := flags.NewParser(opts, flags.Default)
	parser.SubcommandsOptional = true
	return parser
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx

	var opts options
	parser := newParser(&opts)

	// flags.Default prints every error, command failures included.
	if _, err := parser.Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				return 0
			}
			return 2
		}
		return 1
	}

	if opts.Version {
		fmt.Printf("folio %s\n", versionInfo())
		return 0
	}
	if parser.Active == nil {
		parser.WriteHelp(os.Stderr)
		return 2
	}
	return 0
}
