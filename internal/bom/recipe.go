// Package bom resolves which recipe (bill of materials) applies to a build
// and how much component stock open work has already claimed.
package bom

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"

	"github.com/imkarma/shopfloor/internal/inventory"
)

// Component is one line of a recipe.
type Component struct {
	ProductID string          `json:"product_id" validate:"required"`
	PerUnit   decimal.Decimal `json:"per_unit"`
}

// Electrical restricts a recipe to a rating. Unset fields match anything.
type Electrical struct {
	KW   *decimal.Decimal `json:"kw,omitempty"`
	RPM  *decimal.Decimal `json:"rpm,omitempty"`
	Volt *decimal.Decimal `json:"volt,omitempty"`
}

// Mounting restricts a recipe to a mechanical layout.
type Mounting struct {
	TerminalSide   string `json:"terminal_side,omitempty"`
	MountingHole   string `json:"mounting_hole,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"`
}

// Criteria is the match part of a recipe.
type Criteria struct {
	Electrical *Electrical `json:"electrical,omitempty"`
	ShaftCode  string      `json:"shaft_code,omitempty"`
	Cover      string      `json:"cover,omitempty"`
	Mounting   *Mounting   `json:"mounting,omitempty"`
}

// Recipe says what a unit of some build consumes.
type Recipe struct {
	ID          string      `json:"id"`
	Name        string      `json:"name" validate:"required"`
	TargetSKU   string      `json:"target_sku,omitempty"`
	CustomerIDs []string    `json:"customer_ids,omitempty"` // empty: any customer
	Match       Criteria    `json:"match"`
	Components  []Component `json:"components" validate:"required,min=1,dive"`
}

// Generic reports whether the recipe is open to every customer.
func (r Recipe) Generic() bool { return len(r.CustomerIDs) == 0 }

// ForCustomer reports whether the recipe names the customer.
func (r Recipe) ForCustomer(id string) bool {
	if id == "" {
		return false
	}
	for _, c := range r.CustomerIDs {
		if c == id {
			return true
		}
	}
	return false
}

// Attrs is what a resolver subject exposes; inventory.Product and
// inventory.MotorAttrs both satisfy it.
type Attrs interface {
	Number(name string) (decimal.Decimal, bool)
	Text(name string) string
}

// Subject is the thing a recipe is looked up for.
type Subject struct {
	CustomerID string
	TargetSKU  string
	Attrs      Attrs
}

// sameText compares case-insensitively. A Caser keeps state, so one is made
// per call.
func sameText(a, b string) bool {
	fold := cases.Fold()
	return fold.String(strings.TrimSpace(a)) == fold.String(strings.TrimSpace(b))
}

func number(a Attrs, name string) (decimal.Decimal, bool) {
	if a == nil {
		return decimal.Decimal{}, false
	}
	return a.Number(name)
}

func text(a Attrs, name string) string {
	if a == nil {
		return ""
	}
	return a.Text(name)
}

// Matches reports whether every criterion the recipe sets holds for attrs.
// A set criterion against a missing attribute does not hold.
func (c Criteria) Matches(attrs Attrs) bool {
	if e := c.Electrical; e != nil {
		for name, want := range map[string]*decimal.Decimal{
			inventory.AttrKW:   e.KW,
			inventory.AttrRPM:  e.RPM,
			inventory.AttrVolt: e.Volt,
		} {
			if want == nil {
				continue
			}
			got, ok := number(attrs, name)
			if !ok || !inventory.ApproxEqual(got, *want) {
				return false
			}
		}
	}

	texts := map[string]string{
		inventory.AttrShaftCode: c.ShaftCode,
		inventory.AttrCover:     c.Cover,
	}
	if m := c.Mounting; m != nil {
		texts[inventory.AttrTerminalSide] = m.TerminalSide
		texts[inventory.AttrMountingHole] = m.MountingHole
		texts[inventory.AttrConnectionType] = m.ConnectionType
	}
	for name, want := range texts {
		if strings.TrimSpace(want) == "" {
			continue
		}
		if !sameText(text(attrs, name), want) {
			return false
		}
	}
	return true
}

// Resolve picks the recipe for s, or false when none applies.
//
// Recipes restricted to customers only apply to those customers. With a
// target SKU, only recipes for that SKU count and one naming the customer is
// preferred over a generic one. Without a target, the first matching recipe
// naming the customer wins, else the first match. Ties go to stored order.
// A subject with a target and no attributes resolves through ForTarget.
func Resolve(s Subject, recipes []Recipe) (Recipe, bool) {
	if s.TargetSKU != "" && s.Attrs == nil {
		return ForTarget(s.TargetSKU, s.CustomerID, recipes)
	}
	var specific, generic *Recipe
	for i := range recipes {
		r := &recipes[i]
		if s.TargetSKU != "" && !sameText(r.TargetSKU, s.TargetSKU) {
			continue
		}
		if !r.Generic() && !r.ForCustomer(s.CustomerID) {
			continue
		}
		if !r.Match.Matches(s.Attrs) {
			continue
		}
		if r.ForCustomer(s.CustomerID) {
			if specific == nil {
				specific = r
			}
		} else if generic == nil {
			generic = r
		}
	}
	if specific != nil {
		return *specific, true
	}
	if generic != nil {
		return *generic, true
	}
	return Recipe{}, false
}

// ForTarget picks a recipe by target SKU alone; match criteria are not
// consulted. Without a customer the first recipe for sku wins. With one, the
// first recipe naming that customer wins, else the first generic one.
func ForTarget(sku, customerID string, recipes []Recipe) (Recipe, bool) {
	var generic *Recipe
	for i := range recipes {
		r := &recipes[i]
		if !sameText(r.TargetSKU, sku) {
			continue
		}
		if customerID == "" {
			return *r, true
		}
		if r.ForCustomer(customerID) {
			return *r, true
		}
		if r.Generic() && generic == nil {
			generic = r
		}
	}
	if generic != nil {
		return *generic, true
	}
	return Recipe{}, false
}

// Requirements multiplies each component by quantity.
func (r Recipe) Requirements(quantity decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(r.Components))
	for _, c := range r.Components {
		out[c.ProductID] = out[c.ProductID].Add(c.PerUnit.Mul(quantity))
	}
	return out
}
