package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stitts-dev/player-enrichment/internal/app"
	"github.com/stitts-dev/player-enrichment/internal/matching"
	"github.com/stitts-dev/player-enrichment/internal/services"
)

func newMappingCommand(ctx *commandContext) *cobra.Command {
	mappingCmd := &cobra.Command{
		Use:   "mapping",
		Short: "Inspect and edit the Sleeper to FFNerd identity mapping",
	}

	mappingCmd.AddCommand(newMappingBuildCommand(ctx))
	mappingCmd.AddCommand(newMappingStatsCommand(ctx))
	mappingCmd.AddCommand(newMappingLookupCommand(ctx))
	mappingCmd.AddCommand(newMappingOverrideCommand(ctx))

	return mappingCmd
}

func newMappingBuildCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Fetch both directories, rebuild the mapping and save it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				result, err := a.DataFetcher.RunNow(cmd.Context(), services.RefreshOptions{RebuildMapping: true})
				if err != nil {
					return fmt.Errorf("mapping build failed: %w", err)
				}
				stats := a.Service.GetMappingStats()
				if result.Mapping != nil {
					stats = *result.Mapping
				}
				return ctx.writeOutput(cmd, stats, func(out io.Writer) {
					printMappingStats(out, stats)
				})
			})
		},
	}
}

func newMappingStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show mapping coverage and confidence tiers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				stats := a.Service.GetMappingStats()
				return ctx.writeOutput(cmd, stats, func(out io.Writer) {
					printMappingStats(out, stats)
				})
			})
		},
	}
}

func printMappingStats(out io.Writer, stats matching.MappingStats) {
	rows := [][]string{
		{"Mapped", strconv.Itoa(stats.MappedCount)},
	}
	if stats.TotalSleeperPlayers > 0 {
		rows = append(rows,
			[]string{"Sleeper players", strconv.Itoa(stats.TotalSleeperPlayers)},
			[]string{"Eligible Sleeper players", strconv.Itoa(stats.ActiveSleeperPlayers)},
			[]string{"FFNerd players", strconv.Itoa(stats.TotalFFNerdPlayers)},
			[]string{"Unmapped Sleeper", strconv.Itoa(stats.UnmappedSleeper)},
			[]string{"Unmapped FFNerd", strconv.Itoa(stats.UnmappedFFNerd)},
		)
	}
	for _, tier := range []string{matching.TierPerfect, matching.TierHigh, matching.TierMedium, matching.TierLow} {
		rows = append(rows, []string{"Tier " + tier, strconv.Itoa(stats.ConfidenceTiers[tier])})
	}
	if !stats.BuiltAt.IsZero() {
		rows = append(rows, []string{"Built", formatTime(stats.BuiltAt)})
	}
	fmt.Fprintln(out, renderTable([]string{"Mapping", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	if len(stats.UnmappedSample) > 0 {
		sample := make([][]string, 0, len(stats.UnmappedSample))
		for _, p := range stats.UnmappedSample {
			sample = append(sample, []string{p.PlayerID, p.Name, p.Team, p.Position})
		}
		fmt.Fprintln(out, "Unmapped sample:")
		fmt.Fprintln(out, renderTable([]string{"Sleeper ID", "Name", "Team", "Pos"}, sample, nil))
	}
}

type mappingLookup struct {
	SleeperID  string  `json:"sleeper_id"`
	FFNerdID   int     `json:"ffnerd_id,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
	Mapped     bool    `json:"mapped"`
}

func newMappingLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <sleeper-id>...",
		Short: "Show the FFNerd id mapped to Sleeper ids",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				results := make([]mappingLookup, 0, len(args))
				for _, id := range args {
					l := mappingLookup{SleeperID: id}
					if ffnerdID, ok := a.Matcher.GetFFNerdID(id); ok {
						l.FFNerdID = ffnerdID
						l.Confidence, _ = a.Matcher.GetConfidence(id)
						l.Mapped = true
					}
					results = append(results, l)
				}
				return ctx.writeOutput(cmd, results, func(out io.Writer) {
					rows := make([][]string, 0, len(results))
					for _, l := range results {
						if !l.Mapped {
							rows = append(rows, []string{l.SleeperID, "-", "-"})
							continue
						}
						rows = append(rows, []string{l.SleeperID, strconv.Itoa(l.FFNerdID), formatFloat(l.Confidence)})
					}
					fmt.Fprintln(out, renderTable([]string{"Sleeper ID", "FFNerd ID", "Confidence"}, rows,
						[]columnAlignment{alignLeft, alignRight, alignRight}))
				})
			})
		},
	}
}

func newMappingOverrideCommand(ctx *commandContext) *cobra.Command {
	var confidence float64

	cmd := &cobra.Command{
		Use:   "override <sleeper-id> <ffnerd-id>",
		Short: "Pin a Sleeper id to an FFNerd id and save the mapping file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ffnerdID, err := strconv.Atoi(args[1])
			if err != nil || ffnerdID <= 0 {
				return fmt.Errorf("invalid FFNerd id %q", args[1])
			}
			if confidence < 0 || confidence > 1 {
				return fmt.Errorf("confidence must be between 0 and 1, got %v", confidence)
			}
			return ctx.withApp(func(a *app.App) error {
				if err := a.Service.AddMappingOverride(cmd.Context(), args[0], ffnerdID, confidence); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Mapped %s -> %d (confidence %s)\n", args[0], ffnerdID, formatFloat(confidence))
				return nil
			})
		},
	}
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "Confidence recorded for the override")
	return cmd
}
