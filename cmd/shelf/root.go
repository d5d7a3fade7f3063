package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/phrazzld/shelf/internal/config"
	"github.com/phrazzld/shelf/internal/platform/logger"
)

// globals holds state shared by every subcommand.
type globals struct {
	configFile string
	loader     *config.Loader
	config     *config.Config
	logger     *slog.Logger
}

// newRootCmd builds the command hierarchy. Configuration is loaded once,
// before any subcommand runs.
func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "shelf",
		Short:         "shelf serves a novel library over HTTP and maintains its write queue",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.init()
		},
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "f", "",
		"config file (default is ./config.yaml when present)")

	root.AddCommand(newServeCmd(g), newQueueCmd(g))
	return root
}

func (g *globals) init() error {
	g.loader = config.NewLoader()
	if g.configFile != "" {
		g.loader.SetConfigFile(g.configFile)
	}

	cfg, err := g.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	g.config = cfg

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	g.logger = l

	l.Debug("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"database", cfg.Database.Path,
		"queue_dir", cfg.Queue.Dir)
	return nil
}
