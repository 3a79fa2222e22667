package main

import (
	"encoding/json"
	"fmt"
	"io"

	"giftpos/internal/infra"
	"giftpos/internal/worker"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newDLQCommand(opts *rootOptions) *cobra.Command {
	var limit int64
	cmd := &cobra.Command{
		Use:   "dlq",
		Short: "Muestra los envíos a la nube que agotaron sus reintentos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rdb, err := infra.NewRedis(opts.cfg.RedisURL)
			if err != nil {
				return fmt.Errorf("connect redis: %w", err)
			}
			defer rdb.Close()

			total, err := worker.DLQLength(cmd.Context(), rdb, worker.QueuePush)
			if err != nil {
				return err
			}
			entries, err := worker.PeekDLQ(cmd.Context(), rdb, worker.QueuePush, limit)
			if err != nil {
				return err
			}
			if err := renderDLQ(cmd.OutOrStdout(), entries); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d de %d envíos fallidos\n", len(entries), total)
			return nil
		},
	}
	cmd.Flags().Int64Var(&limit, "limit", 20, "máximo de filas")
	return cmd
}

func renderDLQ(w io.Writer, entries []worker.DLQEntry) error {
	table := tablewriter.NewWriter(w)
	table.Header("Pedido", "Intentos", "Falló", "Motivo")
	for _, e := range entries {
		orderID := "-"
		var p worker.PushJobPayload
		if json.Unmarshal(e.Payload, &p) == nil && p.OrderID != "" {
			orderID = p.OrderID
		}
		if err := table.Append([]string{orderID, fmt.Sprint(e.Attempts), e.FailedAt, e.Reason}); err != nil {
			return err
		}
	}
	return table.Render()
}
