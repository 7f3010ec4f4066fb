package main

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/petabite/shiptivitas-2/domain"
	"github.com/petabite/shiptivitas-2/storage"
)

func newInitDBCommand(cfg *config) *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "init-db",
		Short: "Create the clients schema and optionally load seed clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInitDB(cmd.Context(), *cfg, seed)
		},
	}
	cmd.Flags().StringVar(&seed, "seed", "", "YAML file listing clients to insert")
	return cmd
}

func runInitDB(ctx context.Context, cfg config, seedPath string) error {
	log.Info("storage init starting")

	var clients []domain.Client
	if seedPath != "" {
		var err error
		clients, err = storage.LoadSeedFile(seedPath)
		if err != nil {
			return err
		}
	}

	store, err := storage.Open(ctx, cfg.Driver, cfg.DSN)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	defer store.Close()

	if len(clients) > 0 {
		if err := store.Seed(ctx, clients); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}
	log.WithField("seeded", len(clients)).Info("storage init complete")
	return nil
}
