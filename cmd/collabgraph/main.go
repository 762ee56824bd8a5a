package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/collabgraph/internal/config"
	"github.com/rohankatakam/collabgraph/internal/logging"
	"github.com/rohankatakam/collabgraph/internal/storage"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Entry
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logging.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "collabgraph",
	Short: "Build contributor collaboration graphs from GitHub and GitLab activity",
	Long: `collabgraph harvests organization activity from GitHub and GitLab, turns it
into a weighted graph of who works with whom, folds aliases onto a roster of
canonical people and annotates them with teams for the force-graph viewer.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config, using defaults: %v\n", err)
			cfg = config.Default()
		}

		logCfg := logging.DefaultConfig(verbose)
		if !verbose && cfg.Log.Level != "" {
			logCfg.Level = cfg.Log.Level
		}
		logCfg.OutputFile = cfg.Log.File
		logCfg.JSONFormat = cfg.Log.JSON
		if err := logging.Initialize(logCfg); err != nil {
			return err
		}
		logger = logging.Component("cli")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .collabgraph/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`collabgraph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(mergeCmd)
	rootCmd.AddCommand(annotateCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(configCmd)
}

// openStore opens the configured graph store.
func openStore() (storage.GraphStore, error) {
	return storage.Open(cfg.Storage, logging.Component("storage"))
}

// checkConfig logs warnings and fails on errors for the given contexts.
func checkConfig(contexts ...config.ValidationContext) error {
	for _, vc := range contexts {
		result := cfg.Validate(vc)
		for _, w := range result.Warnings {
			logger.Warn(w)
		}
		if err := result.Err(); err != nil {
			return err
		}
	}
	return nil
}
