// Copyright 2023 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Command walletsync runs the light-wallet sync engine standalone,
// wiring an in-memory wallet store for development and testing against
// real peer connections supplied by a separate transport layer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"

	"github.com/chia-network/light-wallet-sync/config"
	"github.com/chia-network/light-wallet-sync/log"
	"github.com/chia-network/light-wallet-sync/node"
	"github.com/chia-network/light-wallet-sync/walletstate"
)

var (
	logFormatFlag = &cli.StringFlag{
		Name:  "log-format",
		Value: "terminal",
		Usage: "log output format: terminal, json, logfmt",
	}
	logFileFlag = &cli.StringFlag{
		Name:  "log-file",
		Usage: "if set, also write rotated JSON logs to this path",
	}
	longSyncThresholdFlag = &cli.UintFlag{
		Name:  "long-sync-threshold",
		Value: 200,
		Usage: "height gap beyond which a long sync is used instead of a backtrack",
	}
	weightProofDBFlag = &cli.StringFlag{
		Name:  "weight-proof-db",
		Usage: "path to a goleveldb directory persisting validated weight proof markers",
	}
	diagnosticsIntervalFlag = &cli.DurationFlag{
		Name:  "diagnostics-interval",
		Value: 30 * time.Second,
		Usage: "how often to log engine queue-depth snapshots",
	}
)

func main() {
	app := &cli.App{
		Name:  "walletsync",
		Usage: "run the light-client coin-state sync engine",
		Flags: []cli.Flag{logFormatFlag, logFileFlag, longSyncThresholdFlag, weightProofDBFlag, diagnosticsIntervalFlag},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	logger := buildLogger(c)
	log.SetDefault(logger)

	cfg := config.Default()
	cfg.LongSyncThreshold = uint32(c.Uint(longSyncThresholdFlag.Name))

	engine, err := node.New(node.Options{
		Config:              cfg,
		Store:               walletstate.NewMemStore(),
		Logger:              logger,
		WeightProofDBPath:   c.String(weightProofDBFlag.Name),
		DiagnosticsInterval: c.Duration(diagnosticsIntervalFlag.Name),
	})
	if err != nil {
		return fmt.Errorf("building sync engine: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting wallet sync engine", "long_sync_threshold", cfg.LongSyncThreshold)
	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("sync engine exited: %w", err)
	}
	return nil
}

func buildLogger(c *cli.Context) log.Logger {
	var handler = log.NewTerminalHandler(os.Stderr, false)
	switch c.String(logFormatFlag.Name) {
	case "json":
		handler = log.JSONHandler(os.Stderr)
	case "logfmt":
		handler = log.LogfmtHandler(os.Stderr)
	}

	if path := c.String(logFileFlag.Name); path != "" {
		fileHandler := log.NewFileHandler(log.FileHandlerConfig{
			Path:       path,
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
			Compress:   true,
		})
		handler = log.MultiHandler(handler, fileHandler)
	}
	return log.NewLogger(handler)
}
