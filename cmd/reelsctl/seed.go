package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/catalog"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/model"
)

func newSeedCmd(c *cli) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the video catalog when the videos collection is empty",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if file == "" {
				file = c.cfg.CatalogPath
			}
			videos := catalog.Fallback()
			if file != "" {
				var err error
				if videos, err = catalog.LoadFile(file); err != nil {
					return err
				}
			}
			return c.withStore(cmd, func(ctx context.Context, store docstore.Store) error {
				return runSeed(ctx, cmd, store, c.paths(), videos)
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML catalog to seed (default $REELS_CATALOG_PATH or the built-in catalog)")
	return cmd
}

func runSeed(ctx context.Context, cmd *cobra.Command, store docstore.Store, paths docstore.Paths, videos []model.Video) error {
	n, err := catalog.Seed(ctx, store, paths, videos)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "videos collection is not empty, nothing seeded")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d videos\n", n)
	return nil
}
