package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/stitts-dev/player-enrichment/internal/app"
	"github.com/stitts-dev/player-enrichment/internal/models"
	"github.com/stitts-dev/player-enrichment/pkg/utils"
)

type enrichOutput struct {
	Players    []models.EnrichedPlayer `json:"players"`
	UnknownIDs []string                `json:"unknown_ids,omitempty"`
}

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var fresh bool

	cmd := &cobra.Command{
		Use:   "enrich <sleeper-id>...",
		Short: "Enrich Sleeper players with cached FFNerd data",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withApp(func(a *app.App) error {
				directory, err := a.Sleeper.GetAllPlayers(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to load Sleeper directory: %w", err)
				}
				a.Ingestion.SetDirectory(directory)

				var output enrichOutput
				if fresh {
					for _, id := range args {
						player, err := a.Service.RefreshEnrichment(cmd.Context(), id)
						if errors.Is(err, utils.ErrNotFound) || errors.Is(err, utils.ErrMappingUnavailable) {
							output.UnknownIDs = append(output.UnknownIDs, id)
							continue
						}
						if err != nil {
							return err
						}
						output.Players = append(output.Players, *player)
					}
				} else {
					enriched, unknown := a.Service.EnrichByIDs(cmd.Context(), args)
					output.UnknownIDs = unknown
					for _, p := range enriched {
						output.Players = append(output.Players, p)
					}
				}
				sort.Slice(output.Players, func(i, j int) bool {
					return output.Players[i].PlayerID < output.Players[j].PlayerID
				})

				return ctx.writeOutput(cmd, output, func(out io.Writer) {
					printEnriched(out, output)
				})
			})
		},
	}
	cmd.Flags().BoolVar(&fresh, "fresh", false, "Recompose records from the cached datasets instead of reading stored records")
	return cmd
}

func printEnriched(out io.Writer, output enrichOutput) {
	rows := make([][]string, 0, len(output.Players))
	for _, p := range output.Players {
		row := []string{p.PlayerID, p.DisplayName(), p.Team, p.Position, "-", "-", "-", "-"}
		if data := p.FFNerdData; data != nil {
			row[4] = strconv.Itoa(data.FFNerdID)
			row[5] = formatFloat(p.EnrichmentConfidence)
			if data.Projections != nil {
				row[6] = formatFloat(data.Projections.ProjectedPoints)
			}
			if data.Injury != nil && data.Injury.Status != "" {
				row[7] = data.Injury.Status
			}
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Sleeper ID", "Name", "Team", "Pos", "FFNerd ID", "Confidence", "Proj", "Injury"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
	for _, id := range output.UnknownIDs {
		fmt.Fprintf(out, "Unknown Sleeper id: %s\n", id)
	}
}
