package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/irctrakz/netlog/pkg/config"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "inspect configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print the effective configuration as YAML",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Aliases: []string{"c"}, EnvVars: []string{"NETLOG_CONFIG"}},
				},
				Action: func(c *cli.Context) error {
					cfg := config.DefaultConfig()
					if path := c.String("config"); path != "" {
						if err := config.LoadFromFile(path, cfg); err != nil {
							return err
						}
					}
					config.LoadFromEnv(cfg)
					if err := cfg.Validate(); err != nil {
						return fmt.Errorf("config: %w", err)
					}
					b, err := yaml.Marshal(cfg)
					if err != nil {
						return err
					}
					_, err = c.App.Writer.Write(b)
					return err
				},
			},
			{
				Name:      "init",
				Usage:     "write the default configuration to a file",
				ArgsUsage: "<path>",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return fmt.Errorf("config init: expected one path argument")
					}
					return config.DefaultConfig().SaveToFile(c.Args().First())
				},
			},
		},
	}
}
