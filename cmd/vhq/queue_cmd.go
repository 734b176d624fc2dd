package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vhq-lag/vhq/internal/models"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the host task queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show queue counts and agent load",
	RunE:  runQueueStatus,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove completed, failed and cancelled tasks",
	RunE:  runQueueClear,
}

var queueSubmitCmd = &cobra.Command{
	Use:   "submit [file]",
	Short: "Queue a file for processing",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueSubmit,
}

var queueShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show task details",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueShow,
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Cancel a pending or running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueCancel,
}

var (
	submitAgent   string
	submitOptions []string
)

func init() {
	queueCmd.AddCommand(queueStatusCmd, queueClearCmd, queueSubmitCmd, queueShowCmd, queueCancelCmd)

	queueSubmitCmd.Flags().StringVar(&submitAgent, "agent", "", "Agent type (vitra_lag, ghost_lag); routed by extension when empty")
	queueSubmitCmd.Flags().StringArrayVar(&submitOptions, "opt", nil, "Processing option as key=value (repeatable)")
}

func runQueueStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()

	q, err := hostClient().GetQueueStatus(ctx)
	if err != nil {
		return err
	}

	st := q.QueueStats
	fmt.Printf("Pending %d  Running %d  Completed %d  Failed %d  Total %d  (max %d concurrent)\n\n",
		st.Pending, st.Running, st.Completed, st.Failed, st.Total, q.MaxConcurrentTasks)

	w := newTable()
	fmt.Fprintln(w, "AGENT\tSTATUS\tHEALTH\tCURRENT TASK\tCAPABILITIES")
	for _, a := range q.Agents {
		current := "-"
		if a.CurrentTask != nil {
			current = truncateID(*a.CurrentTask)
		}
		fmt.Fprintf(w, "%s\t%s\t%.0f%%\t%s\t%s\n",
			a.Name, models.NormalizeAgentState(a.Status), a.HealthScore*100, current, strings.Join(a.Capabilities, ", "))
	}
	return w.Flush()
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()

	if err := hostClient().ClearCompletedTasks(ctx); err != nil {
		return err
	}
	fmt.Println("Cleared finished tasks")
	return nil
}

// parseOptions turns key=value pairs into request options.
func parseOptions(pairs []string) (map[string]interface{}, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	opts := make(map[string]interface{}, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("invalid option %q, want key=value", p)
		}
		opts[strings.TrimSpace(k)] = v
	}
	return opts, nil
}

func runQueueSubmit(cmd *cobra.Command, args []string) error {
	opts, err := parseOptions(submitOptions)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext()
	defer cancel()

	resp, err := hostClient().SubmitTask(ctx, models.ProcessRequest{
		FilePath:  args[0],
		AgentType: submitAgent,
		Options:   opts,
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s (task %s)\n", resp.Message, resp.TaskID)
	return nil
}

func runQueueShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()

	task, err := hostClient().GetTaskStatus(ctx, args[0])
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func runQueueCancel(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()

	if err := hostClient().CancelTask(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("Cancelled task %s\n", args[0])
	return nil
}
