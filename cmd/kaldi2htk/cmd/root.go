// Package cmd implements the kaldi2htk command line.
package cmd

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ieee0824/kaldi2htk/internal/config"
	"github.com/ieee0824/kaldi2htk/internal/logging"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "kaldi2htk",
	Short: "Convert Kaldi GMM acoustic models to HTK",
	Long: `kaldi2htk converts a Kaldi GMM model (final.mdl, phones.txt, tree) into
an HTK MMF and a tied-state list.

The Kaldi binaries print-transitions, context-to-pdf and gmm-copy must be on
PATH or configured under [tools] in the config file.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (.toml, .yaml or .yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func loadConfig() (config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.Load(cfgFile)
}

func logger() zerolog.Logger {
	return logging.Configure(verbose)
}
