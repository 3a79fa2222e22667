package main

import (
	"errors"
	"fmt"
	"time"

	"giftpos/internal/infra"
	"giftpos/internal/orderlock"
	"giftpos/internal/reconcile"
	"giftpos/internal/repository"
	"giftpos/internal/session"

	"github.com/spf13/cobra"
)

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sincroniza los pedidos con la nube (envía y trae 30 días)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			cloud := infra.NewCloudClient(cfg.CloudURL, cfg.CloudAPIKey, cfg.CloudTimeout,
				infra.NewCircuitBreaker(infra.CircuitBreakerConfig{Name: "cloud"}))

			r := reconcile.New(repository.NewOrderRepository(db), cloud, session.NewState(),
				printNotifier{w: cmd.ErrOrStderr()}, orderlock.New(), reconcile.Options{
					ManualLookback: time.Duration(cfg.SyncManualLookbackDays) * 24 * time.Hour,
					FetchLimit:     cfg.SyncFetchLimit,
				})

			res, err := r.ManualSync(cmd.Context())
			if errors.Is(err, reconcile.ErrRemoteNotConfigured) {
				return fmt.Errorf("%w: defina CLOUD_URL", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enviados: %d  fallidos: %d  recibidos: %d  aplicados: %d\n",
				res.Pushed, res.PushFailed, res.Fetched, res.Applied)
			return err
		},
	}
}
