package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shisei-toshokan/shisei/web/internal/cli/client"
	"github.com/shisei-toshokan/shisei/web/internal/cli/config"
	"github.com/shisei-toshokan/shisei/web/internal/cli/output"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Save a server and admin API key as a profile",
	Long: `Verify the admin API key against the server and store both in the
selected profile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")
		apiKey, _ := cmd.Flags().GetString("api-key")
		profile, _ := cmd.Flags().GetString("profile")
		if profile == "" {
			profile = "default"
		}

		c := client.New(server, apiKey)
		if _, err := c.BaselineURLs(cmd.Context()); err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		if err := cfg.SaveProfile(profile, server, apiKey); err != nil {
			return fmt.Errorf("failed to save profile: %w", err)
		}
		output.Success("Logged in to %s (profile %s)", server, profile)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove a stored profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		profile, _ := cmd.Flags().GetString("profile")
		if profile == "" {
			profile = cfg.CurrentProfile
		}
		if err := cfg.RemoveProfile(profile); err != nil {
			return err
		}
		output.Success("Removed profile %s", profile)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)

	loginCmd.Flags().String("server", config.DefaultServerURL, "guard base URL")
	loginCmd.Flags().String("api-key", "", "admin API key")
	_ = loginCmd.MarkFlagRequired("api-key")
}
