package notifier

import "fmt"

// Breakdown is the amount summary included in the receipt email. Amounts are
// in the smallest currency unit.
type Breakdown struct {
	Subtotal int64
	Fee      int64
	Total    int64
}

// Calculator produces the amount breakdown for a purchase of quantity seats
// at unitPrice each.
type Calculator interface {
	Calculate(quantity int, unitPrice int64) Breakdown
}

// FeeCalculator applies a percentage processing fee (in basis points) plus a
// fixed per-seat surcharge.
type FeeCalculator struct {
	FeeBasisPoints int64
	PerSeatFee     int64
}

func NewFeeCalculator() *FeeCalculator {
	return &FeeCalculator{FeeBasisPoints: 290, PerSeatFee: 30}
}

func (c *FeeCalculator) Calculate(quantity int, unitPrice int64) Breakdown {
	subtotal := int64(quantity) * unitPrice
	fee := subtotal*c.FeeBasisPoints/10000 + int64(quantity)*c.PerSeatFee

	return Breakdown{
		Subtotal: subtotal,
		Fee:      fee,
		Total:    subtotal + fee,
	}
}

// MailContext formats the breakdown for template rendering.
func (b Breakdown) MailContext() map[string]interface{} {
	return map[string]interface{}{
		"subtotal": formatAmount(b.Subtotal),
		"fee":      formatAmount(b.Fee),
		"total":    formatAmount(b.Total),
	}
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
