package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shisei-toshokan/shisei/web/internal/cli/output"
	"github.com/shisei-toshokan/shisei/web/internal/cli/seeder"
	"github.com/shisei-toshokan/shisei/web/internal/sampler"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Send fabricated CSP reports and performance snapshots",
	Long: `Populate a development guard with fake telemetry.

Reports go through the public CSP report endpoint and snapshots through the
metrics endpoint, so rate limits and storage behave as they would for real
traffic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		reports, _ := cmd.Flags().GetInt("reports")
		snapshots, _ := cmd.Flags().GetInt("snapshots")
		origin, _ := cmd.Flags().GetString("origin")

		if cmd.Flags().Changed("seed") {
			seed, _ := cmd.Flags().GetInt64("seed")
			seeder.Seed(seed)
		} else {
			seeder.Seed(time.Now().UnixNano())
		}

		c := apiClient(cmd)
		ctx := cmd.Context()

		if origin == "" {
			origin = c.BaseURL()
		}
		sent := 0
		for _, r := range seeder.Reports(reports, origin) {
			if err := c.SendCSPReport(ctx, r); err != nil {
				return fmt.Errorf("failed to send report %d: %w", sent+1, err)
			}
			sent++
		}
		if sent > 0 {
			output.Success("Sent %d CSP reports", sent)
		}

		if snapshots > 0 {
			session := uuid.NewString()
			batch := seeder.Snapshots(snapshots, session)
			reporter := sampler.NewHTTPReporter(c.BaseURL(), c.HTTPClient())
			if err := reporter.Report(ctx, session, batch); err != nil {
				return fmt.Errorf("failed to send snapshots: %w", err)
			}
			output.Success("Sent %d performance snapshots (session %s)", len(batch), session)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().Int("reports", 10, "number of CSP reports")
	seedCmd.Flags().Int("snapshots", 20, "number of performance snapshots")
	seedCmd.Flags().Int64("seed", 0, "random seed for reproducible data")
	seedCmd.Flags().String("origin", "", "document origin for reports (default: server URL)")
}
