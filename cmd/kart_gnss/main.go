// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/relabs-tech/kart_gnss/internal/app"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &cli.App{
		Name:        "kart_gnss",
		Usage:       "u-blox GNSS position reader for the kart",
		Description: "Polls a u-blox receiver for PVT and prints latitude, longitude and heading. Runs the reader when no command is given.",
		Flags:       app.GlobalFlags(),
		Before:      app.Setup,
		Action:      app.RunAction,
		Commands:    app.Commands(),
	}

	if err := a.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
