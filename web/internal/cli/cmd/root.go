// Package cmd implements the shisei command line.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shisei-toshokan/shisei/web/internal/cli/client"
	"github.com/shisei-toshokan/shisei/web/internal/cli/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "shisei",
	Short: "Shisei web guard CLI",
	Long: `shisei is the command-line interface for the Shisei web guard.

Preview Content-Security-Policy headers, inspect CSP violation reports and
security events, manage performance baselines and run synthetic probes.`,
	Version:       "0.1.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.shisei/config.yaml)")
	rootCmd.PersistentFlags().String("profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringP("output", "o", "table", "output format: table, json, yaml")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}
}

// apiClient builds a client for the selected profile.
func apiClient(cmd *cobra.Command) *client.Client {
	if cfg == nil {
		cfg = config.Default()
	}
	profile, _ := cmd.Flags().GetString("profile")
	p := cfg.Resolve(profile)
	return client.New(p.ServerURL, p.APIKey)
}

func outputFormat(cmd *cobra.Command) string {
	format, _ := cmd.Flags().GetString("output")
	return format
}
