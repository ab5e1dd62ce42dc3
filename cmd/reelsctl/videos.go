package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
)

func newVideosCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "videos",
		Short: "List videos in feed order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(ctx context.Context, store docstore.Store) error {
				docs, err := docstore.List(ctx, store, c.paths().Videos())
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tCATEGORY\tCREATED")
				for _, v := range catalog.Decode(docs) {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Title, v.Category, v.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
}
