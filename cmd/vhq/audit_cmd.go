package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Show recent host decision records",
	RunE:  runAudit,
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of records to show")
}

func runAudit(cmd *cobra.Command, args []string) error {
	ctx, cancel := requestContext()
	defer cancel()

	entries, err := hostClient().ListPDR(ctx, auditLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No records found")
		return nil
	}

	w := newTable()
	fmt.Fprintln(w, "WHEN\tACTION\tOUTCOME\tTASK\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			humanize.Time(e.Timestamp), e.Action, e.Outcome, orDash(truncateID(e.TaskID)), orDash(e.Details))
	}
	return w.Flush()
}
