// Package stemma implements the stemma command line tooling: a scenario
// replayer exercising the branch machinery and an inspector for repair
// payload databases.
package stemma

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"
	"gitlab.com/stemma-project/stemma/internal/stemma/config"
)

// NewApp returns a new stemma app.
func NewApp() *cli.App {
	return &cli.App{
		Name:  "stemma",
		Usage: "replay and inspect stemma commit graphs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Path to the stemma configuration TOML file",
			},
		},
		Commands: []*cli.Command{
			newReplayCmd(),
			newStoreCmd(),
		},
	}
}

// loadConfig returns the configuration referenced by the global config flag,
// or the default configuration when the flag is unset.
func loadConfig(ctx *cli.Context) (config.Cfg, error) {
	path := ctx.String("config")
	if path == "" {
		return config.Load(strings.NewReader(""))
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		return config.Cfg{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
