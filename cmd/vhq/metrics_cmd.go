package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vhq-lag/vhq/internal/tui"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show host system metrics and scheduler load",
	RunE:  runMetrics,
}

func runMetrics(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()
	host := hostClient()

	m, err := host.GetSystemMetrics(ctx)
	if err != nil {
		return err
	}

	w := newTable()
	fmt.Fprintf(w, "Memory:\t%s / %s\n", humanize.IBytes(uint64(max(m.UsedMemory, 0))), humanize.IBytes(uint64(max(m.TotalMemory, 0))))
	fmt.Fprintf(w, "CPU:\t%.1f%%\n", m.CPUUsage)
	fmt.Fprintf(w, "Disk:\t%.1f%%\n", m.DiskUsage)
	fmt.Fprintf(w, "Tasks:\t%d active, %d completed, %d failed\n", m.ActiveTasks, m.CompletedTasks, m.FailedTasks)
	fmt.Fprintf(w, "Uptime:\t%s (since %s)\n", tui.FormatUptime(m.Uptime),
		time.Now().Add(-time.Duration(m.Uptime*float64(time.Second))).Format(time.RFC3339))

	// Scheduler stats are optional; older hosts do not serve them.
	if stats, err := host.Workers(ctx); err == nil {
		fmt.Fprintf(w, "Workers:\t%v of %v\n", stats["active_workers"], stats["max_concurrent"])
		if counts, ok := stats["agent_counts"].(map[string]interface{}); ok {
			names := make([]string, 0, len(counts))
			for name := range counts {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(w, "  %s:\t%v\n", name, counts[name])
			}
		}
	}
	return w.Flush()
}
