package models

import (
	"github.com/shopspring/decimal"
)

func init() {
	// Currency values go over the wire as plain JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// CurrencyPlaces is the number of decimal places kept for money values
const CurrencyPlaces = 2

// Order is the master record of the master-detail pair. TotalAmount is
// derived from the order's items and is only written by the order service.
type Order struct {
	ID          uint            `gorm:"primaryKey;column:order_id" json:"order_id"`
	CustomerID  uint            `gorm:"not null;index" json:"customer_id"`
	OrderDate   Date            `gorm:"not null" json:"order_date"`
	TotalAmount decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0" json:"total_amount"`
	Items       []OrderItem     `gorm:"foreignKey:OrderID;references:ID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// TableName specifies the table name for the Order model
func (Order) TableName() string {
	return "orders"
}

// OrderItem is a single product line of an order
type OrderItem struct {
	ID        uint            `gorm:"primaryKey;column:order_item_id" json:"order_item_id"`
	OrderID   uint            `gorm:"not null;index" json:"order_id"`
	ProductID uint            `gorm:"not null;index" json:"product_id"`
	Quantity  int             `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"unit_price"`
	LineTotal decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"line_total"`
}

// TableName specifies the table name for the OrderItem model
func (OrderItem) TableName() string {
	return "order_items"
}

// LineTotal returns quantity x unit price rounded to cents
func LineTotal(quantity int, unitPrice decimal.Decimal) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(CurrencyPlaces)
}

// RoundCurrency rounds a money value to cents
func RoundCurrency(value decimal.Decimal) decimal.Decimal {
	return value.Round(CurrencyPlaces)
}
