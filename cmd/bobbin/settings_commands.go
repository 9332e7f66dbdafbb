package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"bobbin/internal/api"
)

func newSettingsCommand(ctx *commandContext) *cobra.Command {
	settingsCmd := &cobra.Command{
		Use:   "settings",
		Short: "Inspect and tune runtime settings",
	}

	settingsCmd.AddCommand(newSettingsListCommand(ctx))
	settingsCmd.AddCommand(newSettingsGetCommand(ctx))
	settingsCmd.AddCommand(newSettingsSetCommand(ctx))

	return settingsCmd
}

func newSettingsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the stored runtime settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				payload, err := client.Settings(cmd.Context())
				if err != nil {
					return err
				}
				keys := make([]string, 0, len(payload.Settings))
				for key := range payload.Settings {
					keys = append(keys, key)
				}
				sort.Strings(keys)

				rows := make([][]string, 0, len(keys))
				for _, key := range keys {
					rows = append(rows, []string{key, payload.Settings[key]})
				}
				table := renderTable(
					[]string{"Setting", "Value"},
					rows,
					[]columnAlignment{alignLeft, alignRight},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

func newSettingsGetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Show one runtime setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				payload, err := client.Settings(cmd.Context())
				if err != nil {
					return err
				}
				value, ok := payload.Settings[args[0]]
				if !ok {
					return fmt.Errorf("unknown setting %q", args[0])
				}
				fmt.Fprintln(cmd.OutOrStdout(), value)
				return nil
			})
		},
	}
}

func newSettingsSetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one runtime setting without restarting the daemon",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				if err := client.UpdateSetting(cmd.Context(), args[0], args[1]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Updated %s to %s\n", args[0], args[1])
				return nil
			})
		},
	}
}
