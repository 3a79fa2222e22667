package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is one customer transaction. When it carries a fulfillment workflow
// the UI calls it a "sale"; the row is the same.
// Status: "active" | "cancelled"; rows are never deleted.
// DocumentType: "ticket" | "invoice" | "quote"
type Order struct {
	ID           uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	Folio        string    `gorm:"type:varchar(20);uniqueIndex;not null" json:"folio"`
	CustomerName string    `json:"customerName"`
	Date         time.Time `gorm:"index;not null" json:"date"`

	Items      []OrderItem     `gorm:"type:text;serializer:json" json:"items"`
	Subtotal   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"subtotal"`
	Tax        decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"tax"`
	Discount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount"`
	Total      decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total"`
	AmountPaid decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amountPaid"`
	// Balance = Total - AmountPaid
	Balance decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance"`

	DocumentType string `gorm:"type:varchar(20);not null" json:"documentType"`
	Status       string `gorm:"type:varchar(20);not null;index" json:"status"`
	// CancellationReason is set together with Status=cancelled.
	CancellationReason string `gorm:"type:varchar(200)" json:"cancellationReason,omitempty"`

	// FulfillmentStatus is empty for orders created before the workflow existed;
	// readers treat that as "pending".
	FulfillmentStatus  string             `gorm:"type:varchar(20);index" json:"fulfillmentStatus"`
	ShippingDetails    *ShippingDetails   `gorm:"type:text;serializer:json" json:"shippingDetails,omitempty"`
	FulfillmentHistory []FulfillmentEntry `gorm:"type:text;serializer:json" json:"fulfillmentHistory"`

	// UpdatedAt is stamped by the application on every syncable mutation and
	// compared by the reconciliation loop. nil means the row was never stamped.
	UpdatedAt *time.Time `gorm:"index;autoUpdateTime:false" json:"updatedAt,omitempty"`
	CreatedAt time.Time  `json:"-"`
}

// TableName keeps the table name stable regardless of GORM pluralization.
func (Order) TableName() string { return "orders" }

// OrderItem is one line of an order.
type OrderItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Cost      decimal.Decimal `json:"cost"`
}

// ShippingDetails describes how the order leaves the shop.
// Either a carrier guide file or the local delivery flag is required before
// the order can be marked shipped or delivered.
type ShippingDetails struct {
	Carrier          string   `json:"carrier,omitempty"`
	TrackingNumber   string   `json:"trackingNumber,omitempty"`
	Notes            string   `json:"notes,omitempty"`
	GuideFile        []byte   `json:"guideFile,omitempty"`
	GuideFileType    string   `json:"guideFileType,omitempty"`
	GuideFileName    string   `json:"guideFileName,omitempty"`
	ProductionImages []string `json:"productionImages,omitempty"`
	IsLocalDelivery  bool     `json:"isLocalDelivery,omitempty"`
}

// HasGuide reports whether a carrier guide file is attached.
func (s *ShippingDetails) HasGuide() bool {
	return s != nil && len(s.GuideFile) > 0
}

// FulfillmentEntry records one workflow transition. Entries are append-only.
type FulfillmentEntry struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Clone returns a deep copy so callers can mutate without aliasing the
// store's slices.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.FulfillmentHistory = append([]FulfillmentEntry(nil), o.FulfillmentHistory...)
	if o.ShippingDetails != nil {
		sd := *o.ShippingDetails
		sd.GuideFile = append([]byte(nil), o.ShippingDetails.GuideFile...)
		sd.ProductionImages = append([]string(nil), o.ShippingDetails.ProductionImages...)
		c.ShippingDetails = &sd
	}
	if o.UpdatedAt != nil {
		t := *o.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}

// IsCancelled reports whether the order was cancelled.
func (o *Order) IsCancelled() bool { return o.Status == OrderStatusCancelled }

const (
	OrderStatusActive    = "active"
	OrderStatusCancelled = "cancelled"

	DocumentTicket  = "ticket"
	DocumentInvoice = "invoice"
	DocumentQuote   = "quote"
)
