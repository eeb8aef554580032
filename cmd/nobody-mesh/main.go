package main

import (
	"os"

	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"

	"github.com/justnobody/nobody-mesh/build"
)

var log = logging.Logger("main")

func main() {
	setupLogLevels()

	app := &cli.App{
		Name:    "nobody-mesh",
		Usage:   "Anonymous privacy-intent gossip mesh",
		Version: build.UserVersion(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to the TOML config file; a missing file means defaults",
				Value:   "~/.nobody-mesh/config.toml",
				EnvVars: []string{"NOBODY_MESH_CONFIG"},
			},
		},
		Commands: []*cli.Command{
			daemonCmd,
			configCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}

// setupLogLevels defaults every subsystem to INFO unless GOLOG_LOG_LEVEL says
// otherwise.
func setupLogLevels() {
	if _, set := os.LookupEnv("GOLOG_LOG_LEVEL"); !set {
		_ = logging.SetLogLevel("*", "INFO")
	}
}
