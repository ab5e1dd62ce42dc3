package main

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/engagement"
)

func newStatsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print like and comment counts per video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(ctx context.Context, store docstore.Store) error {
				docs, err := docstore.List(ctx, store, c.paths().VideoStats())
				if err != nil {
					return err
				}
				stats := engagement.DecodeStats(docs)

				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "VIDEO\tLIKES\tCOMMENTS")
				for _, id := range slices.Sorted(maps.Keys(stats)) {
					fmt.Fprintf(tw, "%s\t%d\t%d\n", id, stats[id].LikeCount, stats[id].CommentCount)
				}
				return tw.Flush()
			})
		},
	}
}

func newCommentsCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "comments <videoId>",
		Short: "Print the comments of a video, oldest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withStore(cmd, func(ctx context.Context, store docstore.Store) error {
				docs, err := docstore.List(ctx, store, c.paths().Comments())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				comments := engagement.DecodeComments(docs, args[0])
				if len(comments) == 0 {
					fmt.Fprintf(out, "no comments on %s\n", args[0])
					return nil
				}
				for _, cm := range comments {
					fmt.Fprintf(out, "%s  %s: %s\n", cm.CreatedAt.Format("2006-01-02 15:04:05"), cm.AuthorID, cm.Text)
				}
				return nil
			})
		},
	}
}
