package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shisei-toshokan/shisei/web/internal/auth"
	"github.com/shisei-toshokan/shisei/web/internal/cli/output"
	"github.com/shisei-toshokan/shisei/web/internal/csp"
)

type policyView struct {
	Header     string   `json:"header" yaml:"header"`
	Value      string   `json:"value" yaml:"value"`
	Directives []string `json:"directives" yaml:"directives"`
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Print the Content-Security-Policy for a configuration",
	Long: `Build the policy the guard would send for the given flags, without a
running server.

Examples:
  shisei policy --env production --nonce
  shisei policy --env development --report-only -o json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, _ := cmd.Flags().GetString("env")
		useNonce, _ := cmd.Flags().GetBool("nonce")
		reportOnly, _ := cmd.Flags().GetBool("report-only")
		analytics, _ := cmd.Flags().GetBool("vercel-analytics")
		live, _ := cmd.Flags().GetBool("vercel-live")
		reportURI, _ := cmd.Flags().GetString("report-uri")

		policy := csp.PolicyConfig{
			IsProd:             env == "production",
			UseNonce:           useNonce,
			ReportOnly:         reportOnly,
			UseVercelAnalytics: analytics,
			AllowVercelLive:    live,
			ReportURI:          reportURI,
		}
		var nonce string
		if useNonce {
			nonce = csp.GenerateNonce()
		}

		value := csp.Build(policy, nonce)

		if name, _ := cmd.Flags().GetString("directive"); name != "" {
			sources, ok := csp.Directives(value)[name]
			if !ok {
				return fmt.Errorf("policy has no %s directive", name)
			}
			fmt.Fprintln(output.Stdout, strings.Join(sources, " "))
			return nil
		}

		view := policyView{
			Header: csp.HeaderName(reportOnly),
			Value:  value,
		}
		for _, d := range strings.Split(value, ";") {
			if d = strings.TrimSpace(d); d != "" {
				view.Directives = append(view.Directives, d)
			}
		}

		return output.Render(outputFormat(cmd), view, func() *output.Table {
			table := output.NewTable(view.Header)
			for _, d := range view.Directives {
				table.AddRow(d)
			}
			return table
		})
	},
}

var nonceCmd = &cobra.Command{
	Use:   "nonce",
	Short: "Generate CSP nonces",
	RunE: func(cmd *cobra.Command, args []string) error {
		count, _ := cmd.Flags().GetInt("count")
		if count < 1 {
			return fmt.Errorf("count must be positive")
		}
		nonces := make([]string, count)
		for i := range nonces {
			nonces[i] = csp.GenerateNonce()
		}
		return output.Render(outputFormat(cmd), nonces, func() *output.Table {
			table := output.NewTable("NONCE")
			for _, n := range nonces {
				table.AddRow(n)
			}
			return table
		})
	},
}

var hashKeyCmd = &cobra.Command{
	Use:   "hash-key [key]",
	Short: "Hash an admin API key for auth.admin_api_key_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashAPIKey(args[0])
		if err != nil {
			return fmt.Errorf("failed to hash key: %w", err)
		}
		fmt.Fprintln(output.Stdout, hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(nonceCmd)
	rootCmd.AddCommand(hashKeyCmd)

	policyCmd.Flags().String("env", "development", "environment: development or production")
	policyCmd.Flags().Bool("nonce", false, "include a fresh nonce")
	policyCmd.Flags().Bool("report-only", false, "use the report-only header")
	policyCmd.Flags().Bool("vercel-analytics", false, "allow Vercel analytics sources")
	policyCmd.Flags().Bool("vercel-live", false, "allow Vercel Live sources")
	policyCmd.Flags().String("report-uri", "", "report-uri directive (default /api/csp-report)")
	policyCmd.Flags().String("directive", "", "print only the sources of this directive")

	nonceCmd.Flags().Int("count", 1, "number of nonces")
}
