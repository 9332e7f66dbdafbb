package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"bobbin/internal/api"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the item queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue items",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				items, err := client.Queue(cmd.Context(), listStatuses...)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(items) == 0 {
					fmt.Fprintln(out, "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(items))
				for _, item := range items {
					rows = append(rows, []string{
						strconv.FormatInt(item.ID, 10),
						truncate(item.Title, 40),
						item.GroupID,
						item.Status,
						item.Tier,
						formatConfidence(item),
						item.ArrivedAt,
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Group", "Status", "Tier", "Confidence", "Arrived"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprintln(out, table)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&listStatuses, "status", nil, "Filter by item status (pending, classifying, classified, failed)")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Retry failed items (all failed items when no IDs are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
				if err != nil {
					return fmt.Errorf("invalid item id %q", arg)
				}
				ids = append(ids, id)
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.RetryFailed(cmd.Context(), ids...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d item(s)\n", resp.Retried)
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearStatuses []string

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue items (all items when no status filter is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.ClearQueue(cmd.Context(), clearStatuses...)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", resp.Removed)
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVar(&clearStatuses, "status", nil, "Restrict clearing to these statuses")
	return cmd
}

func formatConfidence(item api.Item) string {
	if item.Tier == "" {
		return ""
	}
	return strconv.FormatFloat(item.Confidence, 'f', 2, 64)
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
