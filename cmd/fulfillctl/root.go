package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"giftpos/internal/config"
	"giftpos/internal/infra"
	"giftpos/internal/notify"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type rootOptions struct {
	verbose bool
	cfg     *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "fulfillctl",
		Short: "Operaciones de mantenimiento de pedidos del terminal",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.WarnLevel
			if opts.verbose {
				level = zerolog.DebugLevel
			}
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.RFC3339}).Level(level)

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			opts.cfg = cfg
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newOrdersCommand(opts))
	cmd.AddCommand(newSeedCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newDLQCommand(opts))

	return cmd
}

func (o *rootOptions) openDB() (*gorm.DB, error) {
	db, err := infra.NewDatabase(o.cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Crea o actualiza el esquema de pedidos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			if err := infra.RunMigrations(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "esquema actualizado")
			return nil
		},
	}
}

// printNotifier writes toasts to the terminal instead of a UI.
type printNotifier struct{ w io.Writer }

func (p printNotifier) Notify(level notify.Level, message, orderID string) {
	if orderID != "" {
		fmt.Fprintf(p.w, "[%s] %s (%s)\n", level, message, orderID)
		return
	}
	fmt.Fprintf(p.w, "[%s] %s\n", level, message)
}

var _ notify.Notifier = printNotifier{w: os.Stderr}
