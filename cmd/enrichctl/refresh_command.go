package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stitts-dev/player-enrichment/internal/app"
	"github.com/stitts-dev/player-enrichment/internal/services"
)

func newRefreshCommand(ctx *commandContext) *cobra.Command {
	var rebuild bool

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Run one ingestion pass: directories, datasets and composite records",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				return runRefresh(cmd, ctx, a, rebuild)
			})
		},
	}
	cmd.Flags().BoolVar(&rebuild, "rebuild-mapping", false, "Rebuild the identity mapping even if one is loaded")
	return cmd
}

func runRefresh(cmd *cobra.Command, ctx *commandContext, a *app.App, rebuild bool) error {
	result, err := a.DataFetcher.RunNow(cmd.Context(), services.RefreshOptions{RebuildMapping: rebuild})
	if err != nil {
		return fmt.Errorf("refresh failed: %w", err)
	}
	return ctx.writeOutput(cmd, result, func(out io.Writer) {
		printRefreshResult(out, result)
	})
}

func printRefreshResult(out io.Writer, result *services.RefreshResult) {
	rows := [][]string{
		{"Week", strconv.Itoa(result.Week)},
		{"Scoring", result.Scoring},
		{"Sleeper players", strconv.Itoa(result.SleeperPlayers)},
		{"Projections", strconv.Itoa(result.Projections)},
		{"Injuries", strconv.Itoa(result.Injuries)},
		{"News", strconv.Itoa(result.News)},
		{"Rankings", strconv.Itoa(result.Rankings)},
		{"Records stored", strconv.Itoa(result.Records)},
		{"Duration", result.Duration},
	}
	if result.Mapping != nil {
		rows = append(rows, []string{"Mapping rebuilt", fmt.Sprintf("%d mapped", result.Mapping.MappedCount)})
	}
	fmt.Fprintln(out, renderTable([]string{"Refresh", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
	if len(result.Errors) > 0 {
		fmt.Fprintf(out, "Errors:\n  %s\n", strings.Join(result.Errors, "\n  "))
	}
}
