package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/shisei-toshokan/shisei/web/internal/cli/output"
	"github.com/shisei-toshokan/shisei/web/internal/perf"
	"github.com/shisei-toshokan/shisei/web/internal/sampler"
)

var perfCmd = &cobra.Command{
	Use:   "perf",
	Short: "Performance telemetry, baselines and regressions",
}

var perfMetricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "List stored performance snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient(cmd)
		if clear, _ := cmd.Flags().GetBool("clear"); clear {
			if err := c.ClearSnapshots(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear snapshots: %w", err)
			}
			output.Success("Performance metrics cleared")
			return nil
		}

		snaps, err := c.Snapshots(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list snapshots: %w", err)
		}
		return output.Render(outputFormat(cmd), snaps, func() *output.Table {
			return snapshotTable(snaps)
		})
	},
}

var perfAlertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List recent performance alerts, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		alerts, err := apiClient(cmd).Alerts(cmd.Context(), limit)
		if err != nil {
			return fmt.Errorf("failed to list alerts: %w", err)
		}
		return output.Render(outputFormat(cmd), alerts, func() *output.Table {
			table := output.NewTable("ID", "SEVERITY", "SOURCE", "URL", "REGRESSIONS", "CREATED")
			for _, a := range alerts {
				table.AddRow(a.ID, string(a.Severity), string(a.Source), a.URL,
					strconv.Itoa(len(a.Regressions)), a.CreatedAt.Format("2006-01-02 15:04:05"))
			}
			return table
		})
	},
}

var baselinesCmd = &cobra.Command{
	Use:   "baselines",
	Short: "Manage performance baselines",
}

var baselinesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a baseline measurement",
	Long: `Record a baseline from flags or from a JSON file.

Examples:
  shisei perf baselines add --url / --lcp 2100 --cls 0.04 --performance 92
  shisei perf baselines add --file lighthouse-baseline.json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := baselineFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		stored, err := apiClient(cmd).AddBaseline(cmd.Context(), b)
		if err != nil {
			return fmt.Errorf("failed to add baseline: %w", err)
		}
		if outputFormat(cmd) != "table" {
			return output.Render(outputFormat(cmd), stored, nil)
		}
		output.Success("Baseline recorded for %s at %s", stored.URL, stored.Timestamp.Format(time.RFC3339))
		return nil
	},
}

var baselinesListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List baseline URLs, or the history of --url",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := apiClient(cmd)
		pageURL, _ := cmd.Flags().GetString("url")

		if pageURL == "" {
			urls, err := c.BaselineURLs(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list baselines: %w", err)
			}
			return output.Render(outputFormat(cmd), urls, func() *output.Table {
				table := output.NewTable("URL")
				for _, u := range urls {
					table.AddRow(u)
				}
				return table
			})
		}

		history, err := c.Baselines(cmd.Context(), pageURL)
		if err != nil {
			return fmt.Errorf("failed to list baselines: %w", err)
		}
		return output.Render(outputFormat(cmd), history, func() *output.Table {
			table := output.NewTable("TIMESTAMP", "PERF", "LCP", "FID", "CLS", "FCP", "TTFB")
			for _, b := range history {
				table.AddRow(b.Timestamp.Format("2006-01-02 15:04:05"),
					num(b.Scores.Performance), num(b.CoreWebVitals.LCP), num(b.CoreWebVitals.FID),
					num(b.CoreWebVitals.CLS), num(b.CoreWebVitals.FCP), num(b.CoreWebVitals.TTFB))
			}
			return table
		})
	},
}

var perfCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Compare a measurement against stored baselines",
	Long: `Run regression detection for a measurement without raising an alert.
Accepts the same flags as "baselines add".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		current, err := baselineFromFlags(cmd.Flags())
		if err != nil {
			return err
		}
		result, err := apiClient(cmd).CheckRegression(cmd.Context(), current)
		if err != nil {
			return fmt.Errorf("regression check failed: %w", err)
		}

		return output.Render(outputFormat(cmd), result, func() *output.Table {
			if !result.Regressed {
				output.Success("No regression for %s against %d baselines", result.URL, result.BaselineCount)
			} else {
				output.Warn("Regression for %s: severity %s", result.URL, result.Severity)
			}
			table := output.NewTable("METRIC", "CURRENT", "BASELINE", "CHANGE", "CHANGE %", "SEVERITY", "AGAINST")
			for _, r := range result.Regressions {
				table.AddRow(r.Metric, fmtFloat(r.Current), fmtFloat(r.Baseline), fmtFloat(r.Change),
					fmtFloat(r.ChangePercent), string(r.Severity), string(r.Comparison))
			}
			return table
		})
	},
}

// captureReporter keeps every flushed batch and forwards it when next is set.
type captureReporter struct {
	next sampler.Reporter

	mu    sync.Mutex
	snaps []perf.Snapshot
}

func (c *captureReporter) Report(ctx context.Context, sessionID string, snaps []perf.Snapshot) error {
	c.mu.Lock()
	c.snaps = append(c.snaps, snaps...)
	c.mu.Unlock()
	if c.next == nil {
		return nil
	}
	return c.next.Report(ctx, sessionID, snaps)
}

var perfProbeCmd = &cobra.Command{
	Use:   "probe [url]",
	Short: "Measure a page from the command line",
	Long: `Fetch a page repeatedly for --duration, sampling TTFB and load time
every --interval, then print the snapshots. With --report the batch is also
posted to the guard's metrics endpoint.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		duration, _ := cmd.Flags().GetDuration("duration")
		interval, _ := cmd.Flags().GetDuration("interval")
		report, _ := cmd.Flags().GetBool("report")
		session, _ := cmd.Flags().GetString("session")

		c := apiClient(cmd)
		probe := sampler.NewHTTPProbe(args[0], "", nil)
		reporter := &captureReporter{}
		if report {
			reporter.next = sampler.NewHTTPReporter(c.BaseURL(), c.HTTPClient())
		}

		s := sampler.New(probe, reporter, sampler.Config{
			SessionID:     session,
			VitalsTimeout: duration,
			Interval:      interval,
		}, nil)

		ctx, cancel := context.WithTimeout(cmd.Context(), duration)
		defer cancel()
		s.Run(ctx)

		if len(reporter.snaps) == 0 {
			return fmt.Errorf("no measurements collected for %s", args[0])
		}
		if report {
			output.Info("Sent %d snapshots as session %s", len(reporter.snaps), s.SessionID())
		}
		return output.Render(outputFormat(cmd), reporter.snaps, func() *output.Table {
			return snapshotTable(reporter.snaps)
		})
	},
}

func snapshotTable(snaps []perf.Snapshot) *output.Table {
	table := output.NewTable("TIME", "URL", "LCP", "CLS", "TTFB", "RESOURCES", "HEAP", "SESSION")
	for _, s := range snaps {
		table.AddRow(s.Time().Format("2006-01-02 15:04:05"), s.URL,
			num(s.LCP), num(s.CLS), num(s.TTFB), num(s.ResourceLoadTime), num(s.MemoryUsage), s.SessionID)
	}
	return table
}

var baselineFlags = map[string]func(*perf.Baseline, float64){
	"performance":    func(b *perf.Baseline, v float64) { b.Scores.Performance = perf.Float(v) },
	"accessibility":  func(b *perf.Baseline, v float64) { b.Scores.Accessibility = perf.Float(v) },
	"best-practices": func(b *perf.Baseline, v float64) { b.Scores.BestPractices = perf.Float(v) },
	"seo":            func(b *perf.Baseline, v float64) { b.Scores.SEO = perf.Float(v) },
	"lcp":            func(b *perf.Baseline, v float64) { b.CoreWebVitals.LCP = perf.Float(v) },
	"fid":            func(b *perf.Baseline, v float64) { b.CoreWebVitals.FID = perf.Float(v) },
	"cls":            func(b *perf.Baseline, v float64) { b.CoreWebVitals.CLS = perf.Float(v) },
	"fcp":            func(b *perf.Baseline, v float64) { b.CoreWebVitals.FCP = perf.Float(v) },
	"ttfb":           func(b *perf.Baseline, v float64) { b.CoreWebVitals.TTFB = perf.Float(v) },
	"speed-index":    func(b *perf.Baseline, v float64) { b.Metrics.SpeedIndex = perf.Float(v) },
	"tbt":            func(b *perf.Baseline, v float64) { b.Metrics.TotalBlockingTime = perf.Float(v) },
	"resource-time":  func(b *perf.Baseline, v float64) { b.Metrics.ResourceLoadTime = perf.Float(v) },
}

func addBaselineFlags(fs *pflag.FlagSet) {
	fs.String("url", "", "page URL")
	fs.String("file", "", "read the measurement from a JSON file")
	for name := range baselineFlags {
		fs.Float64(name, 0, name+" value")
	}
}

// baselineFromFlags reads --file, or builds a measurement from the metric
// flags that were explicitly set. --url overrides the file's URL.
func baselineFromFlags(fs *pflag.FlagSet) (perf.Baseline, error) {
	var b perf.Baseline

	if path, _ := fs.GetString("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return b, fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := json.Unmarshal(data, &b); err != nil {
			return b, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	for name, set := range baselineFlags {
		if fs.Changed(name) {
			v, _ := fs.GetFloat64(name)
			set(&b, v)
		}
	}
	if u, _ := fs.GetString("url"); u != "" {
		b.URL = u
	}
	if b.URL == "" {
		return b, fmt.Errorf("--url is required")
	}
	if len(b.Values()) == 0 {
		return b, fmt.Errorf("at least one metric is required")
	}
	return b, nil
}

func num(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmtFloat(*v)
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func init() {
	rootCmd.AddCommand(perfCmd)
	perfCmd.AddCommand(perfMetricsCmd)
	perfCmd.AddCommand(perfAlertsCmd)
	perfCmd.AddCommand(baselinesCmd)
	perfCmd.AddCommand(perfCheckCmd)
	perfCmd.AddCommand(perfProbeCmd)
	baselinesCmd.AddCommand(baselinesAddCmd)
	baselinesCmd.AddCommand(baselinesListCmd)

	perfMetricsCmd.Flags().Bool("clear", false, "delete stored snapshots instead of listing")
	perfAlertsCmd.Flags().Int("limit", 20, "maximum alerts to show")
	addBaselineFlags(baselinesAddCmd.Flags())
	addBaselineFlags(perfCheckCmd.Flags())
	baselinesListCmd.Flags().String("url", "", "show the history of this URL")

	perfProbeCmd.Flags().Duration("duration", 5*time.Second, "how long to probe")
	perfProbeCmd.Flags().Duration("interval", time.Second, "sampling interval")
	perfProbeCmd.Flags().Bool("report", false, "post the snapshots to the guard")
	perfProbeCmd.Flags().String("session", "", "session ID (default: random)")
}
