package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shisei-toshokan/shisei/web/internal/cli/output"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "CSP violation reports",
}

var reportsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List stored CSP violation reports, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		reports, err := apiClient(cmd).CSPReports(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to list reports: %w", err)
		}
		if len(reports) == 0 && outputFormat(cmd) == "table" {
			output.Info("No CSP reports found")
			return nil
		}

		return output.Render(outputFormat(cmd), reports, func() *output.Table {
			table := output.NewTable("RECEIVED", "DIRECTIVE", "BLOCKED", "DOCUMENT")
			for _, r := range reports {
				table.AddRow(
					r.Timestamp.Format("2006-01-02 15:04:05"),
					r.Report.Directive(),
					r.Report.CSPReport.BlockedURI,
					r.Report.CSPReport.DocumentURI,
				)
			}
			return table
		})
	},
}

var reportsSummaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count stored reports by directive and blocked URI",
	RunE: func(cmd *cobra.Command, args []string) error {
		summary, err := apiClient(cmd).CSPSummary(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to summarize reports: %w", err)
		}

		return output.Render(outputFormat(cmd), summary, func() *output.Table {
			output.Info("Total reports: %d\n", summary.Total)
			table := output.NewTable("KIND", "KEY", "COUNT")
			for _, c := range summary.ByDirective {
				table.AddRow("directive", c.Key, strconv.Itoa(c.Count))
			}
			for _, c := range summary.ByBlockedURI {
				table.AddRow("blocked-uri", c.Key, strconv.Itoa(c.Count))
			}
			return table
		})
	},
}

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd)
	reportsCmd.AddCommand(reportsSummaryCmd)

	reportsListCmd.Flags().Int("limit", 50, "maximum reports to show")
}
