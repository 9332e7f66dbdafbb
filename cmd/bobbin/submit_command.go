package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"bobbin/internal/api"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var (
		sourceURL string
		title     string
		groupID   string
		published string
		body      string
		bodyFile  string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a content item for classification",
		RunE: func(cmd *cobra.Command, args []string) error {
			publishedAt := time.Now().UTC()
			if strings.TrimSpace(published) != "" {
				parsed, err := time.Parse(time.RFC3339, published)
				if err != nil {
					return fmt.Errorf("parse --published: %w", err)
				}
				publishedAt = parsed
			}

			itemBody := body
			if strings.TrimSpace(bodyFile) != "" {
				raw, err := os.ReadFile(bodyFile)
				if err != nil {
					return fmt.Errorf("read --body-file: %w", err)
				}
				itemBody = string(raw)
			}

			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Submit(cmd.Context(), api.SubmitRequest{
					SourceURL:   sourceURL,
					Title:       title,
					PublishedAt: publishedAt,
					Body:        itemBody,
					GroupID:     groupID,
				})
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if resp.Duplicate {
					fmt.Fprintln(out, "Item already ingested; nothing queued")
					return nil
				}
				fmt.Fprintf(out, "Queued item %d in group %s\n", resp.ItemID, groupID)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Source URL of the item")
	cmd.Flags().StringVar(&title, "title", "", "Item title")
	cmd.Flags().StringVar(&groupID, "group", "", "Group the item belongs to")
	cmd.Flags().StringVar(&published, "published", "", "Publication time (RFC 3339, defaults to now)")
	cmd.Flags().StringVar(&body, "body", "", "Item body text or HTML")
	cmd.Flags().StringVar(&bodyFile, "body-file", "", "Read the item body from a file")
	cmd.MarkFlagRequired("url")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("group")
	return cmd
}
