package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/sagekb/sage/internal"
	"github.com/sagekb/sage/internal/apperr"
	"github.com/sagekb/sage/internal/cardcache"
	"github.com/sagekb/sage/internal/workspace"
	pkgconfig "github.com/sagekb/sage/pkg/config"
)

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfPresent(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if ws := cmd.String("workspace"); ws != "" {
		cfg.Workspace.Path = ws
	}
	return cfg, nil
}

func runMode(mode internal.Mode) func(context.Context, *cli.Command) error {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithMode(mode)); err != nil {
			if errors.Is(err, apperr.ErrMissingCredential) {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return fmt.Errorf("app run error: %w", err)
		}
		return nil
	}
}

// runLs prints cached cards without touching the synthesizer, so no
// credential is needed.
func runLs(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ws, err := workspace.New(cfg.Workspace.Path)
	if err != nil {
		return err
	}
	for _, card := range cardcache.New(ws).All() {
		fmt.Printf("%-40s %-10s %s\n", card.Path, card.Type, card.Title)
	}
	return nil
}

func main() {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Usage:       "Path to config file",
			DefaultText: "config/config.yaml",
			Value:       "config/config.yaml",
			Sources:     cli.EnvVars("APP_CONFIG_FILE"),
		},
		&cli.StringFlag{
			Name:    "workspace",
			Aliases: []string{"w"},
			Usage:   "Path to the document workspace (overrides config)",
			Sources: cli.EnvVars("SAGE_WORKSPACE"),
		},
	}

	cmd := &cli.Command{
		Name:   "sage",
		Usage:  "Document knowledge-base assistant: indexes a workspace of papers and notes and serves it to agents",
		Action: runMode(internal.ModeMCP),
		Flags:  flags,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Index the workspace and exit",
				Action: runMode(internal.ModeInit),
				Flags:  flags,
			},
			{
				Name:   "serve",
				Usage:  "Serve the web API with live updates",
				Action: runMode(internal.ModeServe),
				Flags:  flags,
			},
			{
				Name:   "ls",
				Usage:  "List cached knowledge cards",
				Action: runLs,
				Flags:  flags,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
