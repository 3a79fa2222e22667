package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ─── Filter / List ──────────────────────────────────────────────────────────

// OrderFilter is bound from the query string of GET /v1/orders.
type OrderFilter struct {
	FulfillmentStatus string `form:"fulfillment_status" validate:"omitempty,oneof=pending design printing qc production ready shipped delivered"`
	IncludeCancelled  bool   `form:"include_cancelled"`
	Page              int    `form:"page,default=1"   validate:"min=1"`
	Limit             int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type OrderListResponse struct {
	Data  []OrderResponse `json:"data"`
	Total int64           `json:"total"`
	Page  int             `json:"page"`
	Limit int             `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

// ShippingRequest is a partial update of the shipping details. Absent fields
// are left unchanged. guide_file travels base64-encoded.
type ShippingRequest struct {
	Carrier          *string  `json:"carrier"           validate:"omitempty,max=80"`
	TrackingNumber   *string  `json:"tracking_number"   validate:"omitempty,max=80"`
	Notes            *string  `json:"notes"             validate:"omitempty,max=500"`
	GuideFile        []byte   `json:"guide_file"`
	GuideFileType    *string  `json:"guide_file_type"   validate:"omitempty,max=100"`
	GuideFileName    *string  `json:"guide_file_name"   validate:"omitempty,max=200"`
	ClearGuide       bool     `json:"clear_guide"`
	ProductionImages []string `json:"production_images" validate:"omitempty,max=3"`
	IsLocalDelivery  *bool    `json:"is_local_delivery"`
}

// FulfillmentUpdateRequest is the detail form submit: requested stage plus
// optional shipping changes applied together with it.
type FulfillmentUpdateRequest struct {
	FulfillmentStatus string           `json:"fulfillment_status" validate:"required,oneof=pending design printing qc production ready shipped delivered"`
	Shipping          *ShippingRequest `json:"shipping"           validate:"omitempty"`
}

type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"required,gt=0"`
	Method string          `json:"method" validate:"required,oneof=efectivo tarjeta transferencia"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,min=5,max=200"`
}

type ApproveRollbackRequest struct {
	Password string `json:"password" validate:"required"`
}

type OpenModalRequest struct {
	Kind string `json:"kind" validate:"required,oneof=edit authorization payment"`
}

type VisibilityRequest struct {
	Foreground *bool `json:"foreground" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type OrderItemResponse struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
}

type ShippingResponse struct {
	Carrier          string   `json:"carrier,omitempty"`
	TrackingNumber   string   `json:"tracking_number,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	HasGuide         bool     `json:"has_guide"`
	GuideFileType    string   `json:"guide_file_type,omitempty"`
	GuideFileName    string   `json:"guide_file_name,omitempty"`
	ProductionImages []string `json:"production_images,omitempty"`
	IsLocalDelivery  bool     `json:"is_local_delivery"`
}

type HistoryEntryResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderResponse struct {
	ID                 string                 `json:"id"`
	Folio              string                 `json:"folio"`
	CustomerName       string                 `json:"customer_name"`
	Date               time.Time              `json:"date"`
	Items              []OrderItemResponse    `json:"items"`
	Subtotal           decimal.Decimal        `json:"subtotal"`
	Tax                decimal.Decimal        `json:"tax"`
	Discount           decimal.Decimal        `json:"discount"`
	Total              decimal.Decimal        `json:"total"`
	AmountPaid         decimal.Decimal        `json:"amount_paid"`
	Balance            decimal.Decimal        `json:"balance"`
	DocumentType       string                 `json:"document_type"`
	Status             string                 `json:"status"`
	CancellationReason string                 `json:"cancellation_reason,omitempty"`
	FulfillmentStatus  string                 `json:"fulfillment_status"`
	NextStage          string                 `json:"next_stage"`
	PrevStage          string                 `json:"prev_stage"`
	Shipping           *ShippingResponse      `json:"shipping,omitempty"`
	History            []HistoryEntryResponse `json:"history"`
	UpdatedAt          *time.Time             `json:"updated_at,omitempty"`
}

// RollbackResponse describes a rollback waiting for the master password.
type RollbackResponse struct {
	ID        string    `json:"id"`
	OrderID   string    `json:"order_id"`
	From      string    `json:"from"`
	Target    string    `json:"target"`
	CreatedAt time.Time `json:"created_at"`
}

// TransitionResponse is returned by the retreat and direct-edit endpoints.
// Exactly one of Order (applied or no-op) and Rollback (pending) is set.
type TransitionResponse struct {
	Order    *OrderResponse    `json:"order,omitempty"`
	Rollback *RollbackResponse `json:"rollback,omitempty"`
}

type ModalResponse struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

type SessionResponse struct {
	OpenModals  int  `json:"open_modals"`
	Foreground  bool `json:"foreground"`
	SyncRunning bool `json:"sync_running"`
}
