package main

import (
	"fmt"
	"os"

	"github.com/datametry/edr/cmd/edr/config"
	"github.com/datametry/edr/pkg/logger"
	"github.com/datametry/edr/pkg/version"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal(err.Error())
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "edr",
		Usage: "Data reliability monitor that delivers warehouse alerts to Slack",
		Commands: []*cli.Command{
			monitorCommand(),
			{
				Name:  "config",
				Usage: "Generate a config file",
				Action: func(c *cli.Context) error {
					b, err := config.Encode(config.DefaultConfig)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(b))
					return nil
				},
			},
		},
		Version: version.String(),
	}
}
