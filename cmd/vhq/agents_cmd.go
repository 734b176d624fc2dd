package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/vhq-lag/vhq/internal/models"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Inspect and control the LAG agents",
}

var agentsStatusCmd = &cobra.Command{
	Use:   "status [agent]",
	Short: "Show agent status",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAgentsStatus,
}

var agentsStartCmd = &cobra.Command{
	Use:   "start [agent]",
	Short: "Start an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsStart,
}

var agentsStopCmd = &cobra.Command{
	Use:   "stop [agent]",
	Short: "Stop an agent",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsStop,
}

var agentsInfoCmd = &cobra.Command{
	Use:   "info [agent]",
	Short: "Show agent configuration",
	Args:  cobra.ExactArgs(1),
	RunE:  runAgentsInfo,
}

func init() {
	agentsCmd.AddCommand(agentsStatusCmd, agentsStartCmd, agentsStopCmd, agentsInfoCmd)
}

func runAgentsStatus(cmd *cobra.Command, args []string) error {
	names := models.AgentNames
	if len(args) == 1 {
		names = []string{strings.ToLower(args[0])}
	}

	ctx, cancel := requestContext()
	defer cancel()
	host := hostClient()

	w := newTable()
	fmt.Fprintln(w, "AGENT\tSTATUS\tMEMORY\tCPU\tLAST ACTIVITY")
	for _, name := range names {
		st, err := host.GetAgentStatus(ctx, name)
		if err != nil {
			w.Flush()
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.1f%%\t%s\n",
			orDash(st.Name), st.State(), humanize.IBytes(uint64(max(st.MemoryUsage, 0))),
			st.CPUUsage, lastActivity(st))
	}
	return w.Flush()
}

func lastActivity(st models.AgentStatus) string {
	t := st.LastActivityTime()
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

func runAgentsStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()

	st, err := hostClient().StartAgent(ctx, strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	fmt.Printf("%s is %s\n", st.Name, st.State())
	return nil
}

func runAgentsStop(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()

	st, err := hostClient().StopAgent(ctx, strings.ToLower(args[0]))
	if err != nil {
		return err
	}
	fmt.Printf("%s is %s\n", st.Name, st.State())
	return nil
}

func runAgentsInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()

	info, err := hostClient().GetAgentInfo(ctx, strings.ToLower(args[0]))
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(info))
	for k := range info {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := newTable()
	for _, k := range keys {
		fmt.Fprintf(w, "%s:\t%s\n", k, formatValue(info[k]))
	}
	return w.Flush()
}

// formatValue renders a decoded JSON value on one line.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []interface{}:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = formatValue(p)
		}
		return strings.Join(parts, ", ")
	case nil:
		return "-"
	case map[string]interface{}:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
