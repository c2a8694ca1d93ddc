package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stitts-dev/player-enrichment/internal/app"
	"github.com/stitts-dev/player-enrichment/internal/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the enrichment cache",
	}

	cacheCmd.AddCommand(newCacheStatusCommand(ctx))
	cacheCmd.AddCommand(newCacheInvalidateCommand(ctx))

	return cacheCmd
}

func newCacheStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show key counts per category and memory use",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				status := a.Service.GetCacheStatus(cmd.Context())
				return ctx.writeOutput(cmd, status, func(out io.Writer) {
					printCacheStatus(out, status)
				})
			})
		},
	}
}

func printCacheStatus(out io.Writer, status cache.Status) {
	connected := "yes"
	if !status.Connected {
		connected = "no"
	}
	fmt.Fprintf(out, "Namespace: %s\n", status.Namespace)
	fmt.Fprintf(out, "Connected: %s\n", connected)
	fmt.Fprintf(out, "Keys:      %d\n", status.TotalKeys)
	fmt.Fprintf(out, "Size:      %s\n", humanBytes(status.TotalSizeBytes))
	if status.LastError != "" {
		fmt.Fprintf(out, "Last error: %s\n", status.LastError)
	}

	rows := make([][]string, 0, len(status.CategoryCounts))
	for _, category := range sortedKeys(status.CategoryCounts) {
		rows = append(rows, []string{category, strconv.Itoa(status.CategoryCounts[category])})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Category", "Keys"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
}

func newCacheInvalidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <pattern>",
		Short: "Delete cache keys matching a glob pattern within the namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				deleted := a.Service.InvalidateCache(cmd.Context(), args[0])
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d keys matching %q\n", deleted, args[0])
				return nil
			})
		},
	}
}
