package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"bobbin/internal/api"
)

func newCollectionsCommand(ctx *commandContext) *cobra.Command {
	collectionsCmd := &cobra.Command{
		Use:   "collections",
		Short: "Inspect collection batches",
	}

	collectionsCmd.AddCommand(newCollectionsListCommand(ctx))
	collectionsCmd.AddCommand(newCollectionsItemsCommand(ctx))

	return collectionsCmd
}

func newCollectionsListCommand(ctx *commandContext) *cobra.Command {
	var groupID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List collections, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				collections, err := client.Collections(cmd.Context(), groupID)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(collections) == 0 {
					fmt.Fprintln(out, "No collections")
					return nil
				}
				rows := make([][]string, 0, len(collections))
				for _, coll := range collections {
					rows = append(rows, []string{
						coll.ID,
						coll.GroupID,
						coll.Status,
						coll.CreatedAt,
						coll.SnapshotAt,
						coll.ConsumedByEpisodeID,
					})
				}
				table := renderTable(
					[]string{"ID", "Group", "Status", "Created", "Snapshot", "Episode"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&groupID, "group", "", "Restrict to one group")
	return cmd
}

func newCollectionsItemsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "items <collection-id>",
		Short: "List the items inside a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				items, err := client.CollectionItems(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Collection is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						truncate(item.Title, 40),
						item.Tier,
						formatConfidence(item),
						truncate(item.Summary, 60),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Tier", "Confidence", "Summary"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
}
