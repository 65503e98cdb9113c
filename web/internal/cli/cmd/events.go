package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shisei-toshokan/shisei/web/internal/cli/output"
	"github.com/shisei-toshokan/shisei/web/internal/secmon"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Security events recorded by the guard",
}

var eventsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List security events, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		eventType, _ := cmd.Flags().GetString("type")
		if eventType != "" && !secmon.EventType(eventType).Valid() {
			return fmt.Errorf("unknown event type %q", eventType)
		}

		page, err := apiClient(cmd).SecurityEvents(cmd.Context(), eventType)
		if err != nil {
			return fmt.Errorf("failed to list security events: %w", err)
		}

		return output.Render(outputFormat(cmd), page, func() *output.Table {
			table := output.NewTable("TIME", "TYPE", "IP", "PATH", "DETAIL")
			for _, e := range page.Events {
				table.AddRow(
					e.Timestamp.Format("2006-01-02 15:04:05"),
					string(e.Type),
					detail(e, "ip"),
					detail(e, "path"),
					firstDetail(e, "signature", "reason", "route"),
				)
			}
			counts := make([]string, 0, len(secmon.EventTypes))
			for _, t := range secmon.EventTypes {
				counts = append(counts, fmt.Sprintf("%s=%d", t, page.Stats.ByType[t]))
			}
			output.Info("Total: %d (%s)\n", page.Stats.Total, strings.Join(counts, ", "))
			return table
		})
	},
}

var eventsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every stored security event",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := apiClient(cmd).ClearSecurityEvents(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear security events: %w", err)
		}
		output.Success("Security events cleared")
		return nil
	},
}

func detail(e secmon.SecurityEvent, key string) string {
	if v, ok := e.Details[key]; ok && v != nil {
		return fmt.Sprint(v)
	}
	return ""
}

func firstDetail(e secmon.SecurityEvent, keys ...string) string {
	for _, k := range keys {
		if v := detail(e, k); v != "" {
			return v
		}
	}
	return ""
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsClearCmd)

	eventsListCmd.Flags().String("type", "", "only show events of this type")
}
