package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	service "github.com/okian/dasha/internal/app"
	"github.com/okian/dasha/internal/config"
	"github.com/okian/dasha/pkg/logger"
)

// cli carries state shared by every subcommand once the root has run.
type cli struct {
	configPath string
	cfg        *config.Config
	log        logger.Logger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "dasha",
		Short:         "Hierarchical planetary period timelines",
		Long:          "dasha subdivides a reference instant into nested planetary periods for several classical period systems.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.init(cmd)
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", os.Getenv("DASHA_CONFIG"), "YAML config file (or DASHA_CONFIG env)")
	root.PersistentFlags().String("log-level", "", "override log level: debug, info, warn, error")
	root.PersistentFlags().String("log-format", "", "override log format: text, json")

	root.AddCommand(newServeCmd(c), newComputeCmd(c), newSystemsCmd(c))
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	cfg, err := config.LoadFile(cmd.Context(), c.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("log-format"); v != "" {
		cfg.LogFormat = v
	}
	if err := logger.InitWithFormat(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr()); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	c.cfg = cfg
	c.log = logger.Get()
	return nil
}

func (c *cli) newService(ctx context.Context) (*service.Service, error) {
	warnEphemerisIgnored(ctx, c.log, c.cfg)
	opts := append(service.FromConfig(c.cfg), service.WithLogger(c.log.Named("service")))
	return service.New(opts...)
}

// warnEphemerisIgnored reports ephemeris settings that cannot take effect:
// this binary registers no longitude resolver, so requests must carry a
// longitude.
func warnEphemerisIgnored(ctx context.Context, log logger.Logger, cfg *config.Config) bool {
	if cfg.EphemerisPath == "" && cfg.EphemerisMode == "" {
		return false
	}
	log.Warn(ctx, "ephemeris settings ignored: no longitude resolver is configured",
		logger.String("ephemeris_path", cfg.EphemerisPath),
		logger.String("ephemeris_mode", cfg.EphemerisMode),
	)
	return true
}
