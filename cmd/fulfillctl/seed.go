package main

import (
	"fmt"
	"time"

	"giftpos/internal/model"
	"giftpos/internal/repository"
	"giftpos/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

type demoOrder struct {
	customer string
	item     string
	price    int64
	stage    workflow.Stage
	guide    bool
}

var demoOrders = []demoOrder{
	{"Lucía Fernández", "Taza personalizada", 4500, workflow.StagePending, false},
	{"Martín Gómez", "Remera estampada", 12000, workflow.StageProduction, false},
	{"Carla Ruiz", "Cuadro con foto", 18500, workflow.StageReady, false},
	{"Diego Sosa", "Llavero grabado", 3000, workflow.StageShipped, true},
	{"Ana Torres", "Almohadón sublimado", 9800, workflow.StageDelivered, true},
}

func newSeedCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Carga pedidos de demostración",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openDB()
			if err != nil {
				return err
			}
			repo := repository.NewOrderRepository(db)
			now := time.Now().UTC()

			for i, d := range demoOrders {
				folio, err := repo.NextFolio(cmd.Context())
				if err != nil {
					return err
				}
				o := buildDemoOrder(folio, d, now.Add(-time.Duration(len(demoOrders)-i)*time.Hour))
				if err := repo.Upsert(cmd.Context(), o); err != nil {
					return fmt.Errorf("seed %s: %w", folio, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %-22s %s\n", o.Folio, o.CustomerName, o.FulfillmentStatus)
			}
			return nil
		},
	}
}

func buildDemoOrder(folio string, d demoOrder, at time.Time) *model.Order {
	price := decimal.NewFromInt(d.price)
	o := &model.Order{
		ID:           uuid.New(),
		Folio:        folio,
		CustomerName: d.customer,
		Date:         at,
		Items: []model.OrderItem{{
			ProductID: "DEMO-1",
			Name:      d.item,
			Quantity:  1,
			Price:     price,
			Cost:      price.Div(decimal.NewFromInt(2)),
		}},
		Subtotal:     price,
		Tax:          decimal.Zero,
		Discount:     decimal.Zero,
		Total:        price,
		AmountPaid:   decimal.Zero,
		Balance:      price,
		DocumentType: model.DocumentTicket,
		Status:       model.OrderStatusActive,
		CreatedAt:    at,
	}
	if d.guide {
		o.ShippingDetails = &model.ShippingDetails{
			Carrier:        "Correo Argentino",
			TrackingNumber: fmt.Sprintf("CA%09d", at.Unix()%1_000_000_000),
			GuideFile:      []byte("%PDF-1.4 demo"),
			GuideFileType:  "application/pdf",
			GuideFileName:  "guia.pdf",
		}
	}
	workflow.Transition(o, workflow.StagePending, at)
	if d.stage != workflow.StagePending {
		workflow.Transition(o, d.stage, at.Add(10*time.Minute))
	}
	return o
}
