package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/RegistryAccord/registryaccord-reels-go/internal/config"
	"github.com/RegistryAccord/registryaccord-reels-go/internal/docstore"
)

// openStore opens the configured document store. Tests replace it.
var openStore = defaultOpenStore

func defaultOpenStore(ctx context.Context, cfg config.Config) (docstore.Store, error) {
	return docstore.Open(ctx, docstore.OpenConfig{
		Backend:       cfg.Store,
		DatabaseDSN:   cfg.DatabaseDSN,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
	})
}

// cli carries the state shared by every subcommand.
type cli struct {
	cfg     config.Config
	appID   string
	store   string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "reelsctl",
		Short:         "Inspect and seed the reels document store",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelWarn
			if c.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config load failed: %w", err)
			}
			if c.appID != "" {
				cfg.AppID = c.appID
			}
			if c.store != "" {
				cfg.Store = c.store
			}
			c.cfg = cfg
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.appID, "app-id", "", "document path namespace (default $REELS_APP_ID)")
	root.PersistentFlags().StringVar(&c.store, "store", "", "store backend: memory, postgres or redis (default $REELS_STORE)")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 30*time.Second, "deadline for store operations")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output to stderr")

	root.AddCommand(
		newSeedCmd(c),
		newVideosCmd(c),
		newStatsCmd(c),
		newCommentsCmd(c),
	)
	return root
}

func (c *cli) paths() docstore.Paths { return docstore.Paths{AppID: c.cfg.AppID} }

// withStore runs fn against an open store with the command deadline applied.
func (c *cli) withStore(cmd *cobra.Command, fn func(ctx context.Context, store docstore.Store) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), c.timeout)
	defer cancel()

	store, err := openStore(ctx, c.cfg)
	if err != nil {
		return fmt.Errorf("failed to open document store: %w", err)
	}
	defer store.Close()
	return fn(ctx, store)
}
