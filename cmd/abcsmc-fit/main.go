package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "abcsmc-fit",
	Short: "Run an ABC sequential Monte Carlo fit against a simulator",
	Long: `abcsmc-fit drives a discrete-event simulator through successive
generations of ABC-SMC, tightening the acceptance tolerance each round until
the particle population converges on the posterior.`,
	Version: version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./abcsmc.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug-level logging")

	rootCmd.AddCommand(fitCmd)
	rootCmd.AddCommand(continueCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
