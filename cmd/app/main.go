package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/tally/internal"
	pkgconfig "github.com/starford/tally/pkg/config"
)

func loadOptions(cmd *cli.Command) ([]internal.Option, error) {
	configPath := cmd.String("config")

	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadWithDefaults(configPath, "", cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return []internal.Option{internal.WithConfig(cfg)}, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	opts, err := loadOptions(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func main() {
	cmd := &cli.Command{
		Name:   "tally",
		Usage:  "Community accountability board with one-vote-per-voter likes and dislikes",
		Action: serve,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API server",
				Action: serve,
			},
			{
				Name:  "mcp",
				Usage: "Serve read-only MCP tools over stdio",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := loadOptions(cmd)
					if err != nil {
						return err
					}
					return internal.RunMCP(ctx, opts...)
				},
			},
			{
				Name:      "import",
				Usage:     "Import YAML card files from a directory",
				ArgsUsage: "<dir>",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					dir := cmd.Args().First()
					if dir == "" {
						return fmt.Errorf("import: directory argument is required")
					}
					opts, err := loadOptions(cmd)
					if err != nil {
						return err
					}
					return internal.RunImport(ctx, dir, opts...)
				},
			},
			{
				Name:  "reconcile",
				Usage: "Recompute like/dislike counters from the vote ledger",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					opts, err := loadOptions(cmd)
					if err != nil {
						return err
					}
					return internal.RunReconcile(ctx, opts...)
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
