package fiscal

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	corefiscal "3tcapital/ms_fiscal_core/internal/core/fiscal"
)

var hundred = decimal.NewFromInt(100)

// Totals are the money figures of an order. Items keeps full precision;
// everything else is in cents.
type Totals struct {
	Lines    []decimal.Decimal
	Items    decimal.Decimal
	Freight  decimal.Decimal
	Discount decimal.Decimal
	Grand    decimal.Decimal
}

// computeTotals sums line totals and applies freight and discount.
// Grand is rounded once from the unrounded figures; Freight and Discount
// are rounded for display only. decimal.Round rounds half away from zero.
func computeTotals(order corefiscal.Order) Totals {
	t := Totals{Lines: make([]decimal.Decimal, len(order.Items))}
	for i, item := range order.Items {
		t.Lines[i] = item.LineTotal()
		t.Items = t.Items.Add(t.Lines[i])
	}
	discount := discountAmount(order.Discount, t.Items)
	t.Freight = order.Freight.Round(2)
	t.Discount = discount.Round(2)
	t.Grand = t.Items.Add(order.Freight).Sub(discount).Round(2)
	return t
}

func discountAmount(d corefiscal.Discount, base decimal.Decimal) decimal.Decimal {
	if !d.Value.IsPositive() {
		return decimal.Zero
	}
	switch d.Type {
	case corefiscal.DiscountPercentage:
		return base.Mul(d.Value).Div(hundred)
	case corefiscal.DiscountFlat:
		return d.Value
	default:
		return decimal.Zero
	}
}

// allocate spreads amount over weights in cents, assigning the rounding
// remainder to the last non-zero weight so the parts add up exactly.
func allocate(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	parts := make([]decimal.Decimal, len(weights))
	if amount.IsZero() || len(weights) == 0 {
		return parts
	}

	var sum decimal.Decimal
	last := -1
	for i, w := range weights {
		sum = sum.Add(w)
		if !w.IsZero() {
			last = i
		}
	}
	if sum.IsZero() {
		parts[len(parts)-1] = amount
		return parts
	}

	allocated := decimal.Zero
	for i, w := range weights {
		if i == last {
			break
		}
		parts[i] = amount.Mul(w).Div(sum).Round(2)
		allocated = allocated.Add(parts[i])
	}
	parts[last] = amount.Sub(allocated)
	return parts
}

// money is a fixed two-decimal string, the form the provider accepts.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// formatBRL renders an amount for human-readable text, e.g. "R$ 1.234,50".
func formatBRL(d decimal.Decimal) string {
	s := d.StringFixed(2)
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	intPart, frac, _ := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	out := "R$ " + b.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

func unitCode(m corefiscal.MeasurementType) string {
	switch m {
	case corefiscal.MeasureSquareMeter:
		return "M2"
	case corefiscal.MeasureLinearMeter:
		return "ML"
	default:
		return "UN"
	}
}

// serviceDescription builds the free-text discriminação: order id, one line
// per item, then the notes.
func serviceDescription(order corefiscal.Order, lines []decimal.Decimal) string {
	out := []string{"Pedido " + order.ID}
	for i, item := range order.Items {
		desc := strings.TrimSpace(item.Description)
		if desc == "" {
			desc = "Serviço"
		}
		out = append(out, fmt.Sprintf("%s x %s - %s = %s",
			item.Quantity.String(), desc, formatBRL(item.UnitPrice), formatBRL(lines[i])))
	}
	if notes := strings.TrimSpace(order.Notes); notes != "" {
		out = append(out, notes)
	}
	return strings.Join(out, "\n")
}

// Destination locale codes.
const (
	localeInternal   = 1
	localeInterstate = 2
)

// destinationLocale is internal when both states match or either is unknown.
func destinationLocale(emitterState, counterpartyState string) int {
	a := strings.ToUpper(strings.TrimSpace(emitterState))
	b := strings.ToUpper(strings.TrimSpace(counterpartyState))
	if a == "" || b == "" || a == b {
		return localeInternal
	}
	return localeInterstate
}

func optional(s string) string {
	return strings.TrimSpace(s)
}
