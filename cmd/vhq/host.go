package main

import (
	"context"
	"os"
	"text/tabwriter"

	"github.com/vhq-lag/vhq/internal/client"
)

// hostClient returns a client for the configured host.
func hostClient() *client.Client {
	return client.NewWithTimeout(cfg.API, cfg.RequestTimeout)
}

// requestContext bounds a single CLI command against the host.
func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), cfg.RequestTimeout)
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
