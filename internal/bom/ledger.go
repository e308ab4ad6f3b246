package bom

import (
	"github.com/shopspring/decimal"
)

// Demand is an open task's claim on components.
type Demand struct {
	TaskID   string
	Quantity decimal.Decimal
	Subject  Subject
}

// Committed sums, per component product, what the demands will consume.
// The demand with excludeID is skipped so a task can be evaluated against
// everyone else's claims. Demands with no applicable recipe claim nothing.
func Committed(demands []Demand, recipes []Recipe, excludeID string) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal)
	for _, d := range demands {
		if excludeID != "" && d.TaskID == excludeID {
			continue
		}
		r, ok := Resolve(d.Subject, recipes)
		if !ok {
			continue
		}
		for id, q := range r.Requirements(d.Quantity) {
			out[id] = out[id].Add(q)
		}
	}
	return out
}

// Available is stock on hand minus what is already committed.
func Available(onHand decimal.Decimal, committed map[string]decimal.Decimal, productID string) decimal.Decimal {
	return onHand.Sub(committed[productID])
}
