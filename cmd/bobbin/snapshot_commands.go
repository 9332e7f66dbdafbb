package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"bobbin/internal/api"
)

func newSnapshotCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "snapshot <group> <episode>",
		Short: "Freeze a group's building collection for an episode",
		Long: "Requests an atomic snapshot of the group's building collection. On " +
			"success the group lock stays held for the episode; release it with " +
			"`bobbin release` once downstream work completes.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Snapshot(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Snapshot %s frozen with %d item(s)\n", resp.SnapshotID, resp.ItemCount)
				fmt.Fprintf(out, "Lock token: %s\n", resp.LockToken)
				return nil
			})
		},
	}
}

func newReleaseCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "release <group> <token>",
		Short: "Release a group lock held by a snapshot consumer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.Release(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Released lock on group %s\n", args[0])
				return nil
			})
		},
	}
}
