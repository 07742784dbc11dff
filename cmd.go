package main

import (
	"fmt"

	"github.com/amirphl/safelink/app/services"
	"github.com/amirphl/safelink/config"
	"github.com/amirphl/safelink/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "safelink <command>",
	Short:         "Blog front end with a two-step link gate",
	SilenceUsage:  true,
	SilenceErrors: false,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		logger.Info("Starting safelink",
			zap.String("environment", cfg.Deployment.Environment),
			zap.String("version", cfg.Deployment.Version),
		)
		return runServer(cfg, logger)
	},
}

var encodeCmd = &cobra.Command{
	Use:   "encode <url>",
	Short: "Print the gate token for a destination URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		token, err := services.NewDestinationCodec().Encode(args[0])
		if err != nil {
			return fmt.Errorf("encoding url: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var decodeCmd = &cobra.Command{
	Use:   "decode <token>",
	Short: "Print the destination URL carried by a gate token",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dest, err := services.NewDestinationCodec().Decode(args[0])
		if err != nil {
			return fmt.Errorf("decoding token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), dest)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the short link tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadRuntime()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := initializeDatabase(cfg.Database, logger)
		if err != nil {
			return err
		}
		if err := db.AutoMigrate(&models.ShortLink{}, &models.ShortLinkClick{}); err != nil {
			return fmt.Errorf("migrating short link tables: %w", err)
		}
		logger.Info("Migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, encodeCmd, decodeCmd, migrateCmd)
}

func loadRuntime() (*config.ProductionConfig, *zap.Logger, error) {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	logger, err := initializeLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}
