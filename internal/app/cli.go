// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"errors"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/relabs-tech/kart_gnss/internal/config"
	"github.com/relabs-tech/kart_gnss/internal/track"
)

// GlobalFlags are accepted before any command.
func GlobalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "YAML configuration file (defaults apply when omitted)",
			EnvVars: []string{"KART_GNSS_CONFIG"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "log at debug level",
			EnvVars: []string{"KART_GNSS_DEBUG"},
		},
	}
}

// Setup loads the global configuration and applies its log settings.
func Setup(c *cli.Context) error {
	if err := config.InitGlobal(c.String("config")); err != nil {
		return err
	}
	return setupLogging(config.Get().Log, c.Bool("debug"))
}

// RunAction is the default action: poll the receiver and print fixes.
func RunAction(c *cli.Context) error {
	cfg := config.Get()
	if cfg == nil {
		return errors.New("configuration not loaded")
	}
	return RunPVTReader(c.Context, cfg)
}

func RegisterRunCLI() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "poll the GNSS receiver and print latitude, longitude and heading",
		Action: RunAction,
	}
}

func RegisterConvertCLI() *cli.Command {
	return &cli.Command{
		Name:  "convert",
		Usage: "convert a raw integer position log to degrees",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "in", Value: "data1.txt", Usage: "raw log"},
			&cli.StringFlag{Name: "out", Value: "output_data1.txt", Usage: "degrees log"},
		},
		Action: func(c *cli.Context) error {
			in, err := os.Open(c.String("in"))
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			n, err := RunConvert(in, out)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			log.Infof("convert: %d positions converted", n)
			fmt.Fprintf(c.App.Writer, "Output data has been written to %s\n", c.String("out"))
			return nil
		},
	}
}

func RegisterMapCLI() *cli.Command {
	return &cli.Command{
		Name:      "map",
		Usage:     "plot the route in a position log as a PNG",
		ArgsUsage: "<log file>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Value: "route.png", Usage: "PNG output"},
			&cli.IntFlag{Name: "size", Value: track.DefaultRenderOpts.Size, Usage: "image edge in pixels"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("Usage: kart_gnss map <dataFile.txt>", 1)
			}
			if err := checkMapSize(c.Int("size")); err != nil {
				return err
			}
			in, err := os.Open(c.Args().First())
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := os.Create(c.String("out"))
			if err != nil {
				return err
			}
			opts := track.DefaultRenderOpts
			opts.Size = c.Int("size")
			n, err := RunRouteMap(in, out, opts)
			if cerr := out.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			log.Infof("map: plotted %d positions to %s", n, c.String("out"))
			return nil
		},
	}
}

func RegisterTrackCLI() *cli.Command {
	return &cli.Command{
		Name:  "track",
		Usage: "check logged kart positions against a reference lap",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "track", Value: "output_data1.txt", Usage: "reference lap log"},
			&cli.StringFlag{Name: "kart", Value: "robots_coordinates.txt", Usage: "kart position log"},
			&cli.Float64Flag{Name: "tolerance", Usage: "on-track distance in metres (config track.tolerance_m when unset)"},
			&cli.StringFlag{Name: "plot", Usage: "write a PNG of the lap with the last kart position"},
		},
		Action: func(c *cli.Context) error {
			cfg := config.Get()
			if cfg == nil {
				return errors.New("configuration not loaded")
			}
			tol := cfg.Track.ToleranceM
			if c.IsSet("tolerance") {
				tol = c.Float64("tolerance")
			}

			trackFile, err := os.Open(c.String("track"))
			if err != nil {
				return err
			}
			defer trackFile.Close()
			kartFile, err := os.Open(c.String("kart"))
			if err != nil {
				return err
			}
			defer kartFile.Close()

			b := cfg.Track.Boundary
			tc := TrackCheck{
				Track:      trackFile,
				Kart:       kartFile,
				Boundary:   track.NewBoundary(b.MinLat, b.MaxLat, b.MinLon, b.MaxLon),
				ToleranceM: tol,
				Out:        c.App.Writer,
			}
			if path := c.String("plot"); path != "" {
				plot, err := os.Create(path)
				if err != nil {
					return err
				}
				defer plot.Close()
				tc.Plot = plot
			}
			return RunTrackCheck(tc)
		},
	}
}

func RegisterMonitorCLI() *cli.Command {
	return &cli.Command{
		Name:  "monitor",
		Usage: "print the fixes a running reader publishes over MQTT",
		Action: func(c *cli.Context) error {
			cfg := config.Get()
			if cfg == nil {
				return errors.New("configuration not loaded")
			}
			return RunConsoleMQTT(c.Context, cfg.MQTT, c.App.Writer)
		},
	}
}

// Commands lists every command of the kart_gnss binary.
func Commands() []*cli.Command {
	return []*cli.Command{
		RegisterRunCLI(),
		RegisterConvertCLI(),
		RegisterMapCLI(),
		RegisterTrackCLI(),
		RegisterMonitorCLI(),
	}
}
