package fiscal

import "github.com/shopspring/decimal"

// MeasurementType is how an order item is measured.
type MeasurementType string

const (
	MeasureUnit        MeasurementType = "unit"
	MeasureSquareMeter MeasurementType = "square_meter"
	MeasureLinearMeter MeasurementType = "linear_meter"
)

// DiscountType tells whether the discount value is a percentage or a flat amount.
type DiscountType string

const (
	DiscountNone       DiscountType = ""
	DiscountPercentage DiscountType = "percentage"
	DiscountFlat       DiscountType = "flat"
)

// Discount applied to an order total.
type Discount struct {
	Type  DiscountType    `json:"type"`
	Value decimal.Decimal `json:"value"`
}

// OrderItem is one line of an order.
type OrderItem struct {
	Code            string           `json:"code"`
	Description     string           `json:"description"`
	MeasurementType MeasurementType  `json:"measurementType"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unitPrice"`
	Total           *decimal.Decimal `json:"total,omitempty"`
	NCM             string           `json:"ncm,omitempty"`
}

// LineTotal is the explicit total when present, else unit price times quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	if i.Total != nil {
		return *i.Total
	}
	return i.UnitPrice.Mul(i.Quantity)
}

// Order is the sales record a document is emitted from. It is owned by the
// order module and only read here.
type Order struct {
	ID             string          `json:"id"`
	TenantID       string          `json:"tenantId"`
	CounterpartyID string          `json:"counterpartyId"`
	Items          []OrderItem     `json:"items"`
	Freight        decimal.Decimal `json:"freight"`
	Discount       Discount        `json:"discount"`
	Notes          string          `json:"notes,omitempty"`
}
