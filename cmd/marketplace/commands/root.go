package commands

import (
	"fmt"

	"sakura_marketplace/internal/app/port"
	"sakura_marketplace/internal/infrastructure/configloader"
	"sakura_marketplace/internal/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *configloader.Config
	log        port.Logger
)

// Execute runs the marketplace command tree.
func Execute() error {
	root := &cobra.Command{
		Use:           "marketplace",
		Short:         "Sakura NFT marketplace backend",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := configloader.Load(configPath)
			if err != nil {
				return err
			}
			if _, err := logger.Init(loaded.Logging.Level, loaded.Logging.Development); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			cfg = loaded
			log = logger.NewSlogAdapter()
			log.Debug("Configuration loaded", "path", configPath)
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logger.Sync()
		},
	}

	root.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yml", "path to the YAML configuration file")

	root.AddCommand(serveCmd(), networksCmd(), statsCmd())
	return root.Execute()
}
