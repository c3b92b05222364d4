package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/edrak/internal"
	"github.com/starford/edrak/internal/models"
	pkgconfig "github.com/starford/edrak/pkg/config"
)

// loadConfig reads the --config file over the defaults. A missing file is
// fine; the defaults plus $GEMINI_API_KEY are enough to start.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.RunMCP(ctx, internal.WithConfig(cfg))
}

func exportPage(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Export(ctx, cmd.String("page"), internal.WithConfig(cfg))
}

func importPages(ctx context.Context, cmd *cli.Command) error {
	paths := cmd.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one Markdown file is required")
	}
	category := models.Category(cmd.String("category"))
	if !category.Valid() {
		return fmt.Errorf("unknown category %q", category)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Import(ctx, paths, category, internal.WithConfig(cfg))
}

func main() {
	cmd := &cli.Command{
		Name:   "edrak",
		Usage:  "Block-based second brain with PARA categories, wikilinks and AI assist",
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
				Usage:  "Run the HTTP API (default)",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:   "export",
				Usage:  "Print a page as Markdown",
				Action: exportPage,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "page", Aliases: []string{"p"}, Usage: "Page id", Required: true},
				},
			},
			{
				Name:      "import",
				Usage:     "Create pages from Markdown files",
				ArgsUsage: "FILE...",
				Action:    importPages,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "category",
						Usage: "Category for files without one in frontmatter",
						Value: string(models.CategoryResources),
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
