package main

import (
	"fmt"
	"os"

	"designsense-go/internal/config"
	logger "designsense-go/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "0.1.0"

type rootFlags struct {
	projectRoot string
	configFile  string
}

func main() {
	f := &rootFlags{}

	root := &cobra.Command{
		Use:           "designsense",
		Short:         "Design Sense assessment API",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(f)
		},
	}
	root.PersistentFlags().StringVar(&f.projectRoot, "root", ".", "Project root holding config/, .env and logs/")
	root.PersistentFlags().StringVar(&f.configFile, "config", "", "Config file (default: <root>/config/config.yaml)")

	root.AddCommand(newServeCmd(f), newSeedCmd(f))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads the configuration and builds the logger shared by every command.
func bootstrap(f *rootFlags) (*config.Loader, *config.Config, *zap.Logger, zap.AtomicLevel, error) {
	loader, err := config.NewLoader(f.projectRoot)
	if err != nil {
		return nil, nil, nil, zap.AtomicLevel{}, err
	}
	if f.configFile != "" {
		loader.SetConfigFile(f.configFile)
	}
	conf, err := loader.Load()
	if err != nil {
		return nil, nil, nil, zap.AtomicLevel{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, level, err := logger.Init(f.projectRoot, conf.Logging)
	if err != nil {
		return nil, nil, nil, zap.AtomicLevel{}, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return loader, conf, log, level, nil
}
