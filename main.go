package main

import (
	"context"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	driver string
	dsn    string
}

func newRootCommand(getenv func(string) string) *cobra.Command {
	opts := &rootOptions{}
	cfg := &config{}

	cmd := &cobra.Command{
		Use:           "shiptivity",
		Short:         "Shiptivity clients API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig(getenv)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("driver") {
				loaded.Driver = opts.driver
			}
			if cmd.Flags().Changed("dsn") {
				loaded.DSN = opts.dsn
			}
			if loaded.Debug {
				log.SetLevel(log.DebugLevel)
			}
			*cfg = loaded
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *cfg)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "storage driver (sqlite|pgx), overrides STORAGE_DRIVER")
	cmd.PersistentFlags().StringVar(&opts.dsn, "dsn", "", "storage DSN, overrides STORAGE_DSN")

	cmd.AddCommand(newServeCommand(cfg))
	cmd.AddCommand(newInitDBCommand(cfg))

	return cmd
}

func main() {
	if err := newRootCommand(os.Getenv).ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
