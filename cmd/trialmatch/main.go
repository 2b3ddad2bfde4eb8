package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/trialmatch/internal/config"
	logpkg "github.com/kailas-cloud/trialmatch/internal/logger"
	"github.com/kailas-cloud/trialmatch/internal/version"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "trialmatch",
		Usage:   "Match patient profiles against clinical trials",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a config file (default: config/<env>.yaml)",
				EnvVars: []string{"TRIALMATCH_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "env",
				Usage:   "Config environment name",
				EnvVars: []string{"ENV"},
				Value:   "local",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log debug output to stderr",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			cacheCommand(),
			indexCommand(),
			ingestCommand(),
			evalCommand(),
		},
	}
}

// setup loads configuration and a stderr logger for a command.
func setup(c *cli.Context) (config.Config, *zap.Logger, error) {
	var (
		cfg config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(c.String("env"))
	}
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logpkg.NewCLILogger(c.Bool("verbose"))
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}
