package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var storeFlag string
	var jsonFlag bool

	ctx := newCommandContext(&storeFlag, &jsonFlag)

	rootCmd := &cobra.Command{
		Use:           "entctl",
		Short:         "Inspect and administer download entitlements",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
	}

	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Order document path (forces the file backend)")
	rootCmd.PersistentFlags().BoolVar(&jsonFlag, "json", false, "Print JSON instead of tables")

	rootCmd.AddCommand(newListCommand(ctx))
	rootCmd.AddCommand(newShowCommand(ctx))
	rootCmd.AddCommand(newMarkUsedCommand(ctx))
	rootCmd.AddCommand(newRedeemCommand(ctx))

	return rootCmd
}
