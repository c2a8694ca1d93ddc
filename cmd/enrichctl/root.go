package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(load appLoader) *cobra.Command {
	var verbose bool
	var jsonFlag bool

	ctx := newCommandContext(load, &verbose, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "enrichctl",
		Short:         "Inspect and manage the player identity mapping and enrichment cache",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show service logs")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Write JSON instead of tables")

	rootCmd.AddCommand(newRefreshCommand(ctx))
	rootCmd.AddCommand(newMappingCommand(ctx))
	rootCmd.AddCommand(newCacheCommand(ctx))
	rootCmd.AddCommand(newEnrichCommand(ctx))

	return rootCmd
}
