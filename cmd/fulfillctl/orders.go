package main

import (
	"fmt"
	"io"

	"giftpos/internal/model"
	"giftpos/internal/repository"
	"giftpos/internal/workflow"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newOrdersCommand(opts *rootOptions) *cobra.Command {
	var (
		status    string
		cancelled bool
		limit     int
	)
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Lista los pedidos locales",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status != "" {
				if _, err := workflow.ParseStage(status); err != nil {
					return err
				}
			}
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			orders, total, err := repository.NewOrderRepository(db).List(cmd.Context(), repository.OrderFilter{
				FulfillmentStatus: status,
				IncludeCancelled:  cancelled,
				Page:              1,
				Limit:             limit,
			})
			if err != nil {
				return err
			}
			seq, err := workflow.SequenceByName(opts.cfg.FulfillmentSequence)
			if err != nil {
				return err
			}
			if err := renderOrders(cmd.OutOrStdout(), seq, orders); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d de %d pedidos\n", len(orders), total)
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filtrar por etapa")
	cmd.Flags().BoolVar(&cancelled, "cancelled", false, "incluir pedidos cancelados")
	cmd.Flags().IntVar(&limit, "limit", 50, "máximo de filas")
	return cmd
}

func renderOrders(w io.Writer, seq workflow.Sequence, orders []model.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header("Folio", "Cliente", "Fecha", "Etapa", "Siguiente", "Saldo", "Guía", "Actualizado")
	for i := range orders {
		o := &orders[i]
		current := workflow.Current(o)
		next := seq.Next(current)
		if next == current {
			next = "-"
		}
		guide := "no"
		if o.ShippingDetails.HasGuide() {
			guide = "sí"
		}
		updated := "-"
		if o.UpdatedAt != nil {
			updated = o.UpdatedAt.Local().Format("2006-01-02 15:04")
		}
		status := string(current)
		if o.IsCancelled() {
			status += " (cancelado)"
		}
		if err := table.Append([]string{
			o.Folio,
			o.CustomerName,
			o.Date.Local().Format("2006-01-02"),
			status,
			string(next),
			o.Balance.StringFixed(2),
			guide,
			updated,
		}); err != nil {
			return err
		}
	}
	return table.Render()
}
