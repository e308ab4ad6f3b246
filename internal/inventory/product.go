// Package inventory holds the stock book: products, their category-specific
// attributes, and the append-only movement history.
package inventory

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind classifies a product by how it enters stock.
type Kind string

const (
	KindRaw      Kind = "raw"      // purchased, never produced here
	KindSemi     Kind = "semi"     // produced here, consumed by assembly
	KindFinished Kind = "finished" // sellable motor
)

// Category is the product family. It decides which attribute variant a
// product carries and which production stage makes it.
type Category string

const (
	CategoryStator           Category = "stator"
	CategoryRotor            Category = "rotor"
	CategoryShaft            Category = "shaft"
	CategoryRotorShaft       Category = "rotor_shaft"
	CategoryGroundShaft      Category = "ground_shaft"
	CategoryWoundPackage     Category = "wound_package"
	CategoryHousedPackage    Category = "housed_package"
	CategoryMotor            Category = "motor"
	CategoryCopperWire       Category = "copper_wire"
	CategoryAuxiliary        Category = "auxiliary"
	CategoryAluminiumHousing Category = "aluminium_housing"
	CategoryBearing          Category = "bearing"
	CategoryCover            Category = "cover"
	CategoryMachinedCover    Category = "machined_cover"
	CategoryGroundCover      Category = "ground_cover"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryStator, CategoryRotor, CategoryShaft, CategoryRotorShaft, CategoryGroundShaft,
	CategoryWoundPackage, CategoryHousedPackage, CategoryMotor, CategoryCopperWire,
	CategoryAuxiliary, CategoryAluminiumHousing, CategoryBearing, CategoryCover,
	CategoryMachinedCover, CategoryGroundCover,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	for _, k := range Categories {
		if k == c {
			return true
		}
	}
	return false
}

// Product is a stock-keeping unit.
type Product struct {
	ID       string           `json:"id"`
	SKU      string           `json:"sku" validate:"required"`
	Name     string           `json:"name" validate:"required"`
	Kind     Kind             `json:"kind" validate:"oneof=raw semi finished"`
	Category Category         `json:"category" validate:"required"`
	Unit     string           `json:"unit,omitempty"`
	Quantity decimal.Decimal  `json:"quantity"`
	Minimum  *decimal.Decimal `json:"minimum,omitempty"`
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
	Attrs    Variant          `json:"-"`
}

// BelowMinimum reports whether stock fell under the product's minimum level.
func (p Product) BelowMinimum() bool {
	return p.Minimum != nil && p.Quantity.LessThan(*p.Minimum)
}

// Number reads a numeric attribute through the variant, if any.
func (p Product) Number(name string) (decimal.Decimal, bool) {
	if p.Attrs == nil {
		return decimal.Decimal{}, false
	}
	return p.Attrs.Number(name)
}

// Text reads a text attribute through the variant, if any.
func (p Product) Text(name string) string {
	if p.Attrs == nil {
		return ""
	}
	return p.Attrs.Text(name)
}

type productJSON struct {
	ID       string           `json:"id"`
	SKU      string           `json:"sku"`
	Name     string           `json:"name"`
	Kind     Kind             `json:"kind"`
	Category Category         `json:"category"`
	Unit     string           `json:"unit,omitempty"`
	Quantity decimal.Decimal  `json:"quantity"`
	Minimum  *decimal.Decimal `json:"minimum,omitempty"`
	UnitCost *decimal.Decimal `json:"unit_cost,omitempty"`
	Attrs    json.RawMessage  `json:"attrs,omitempty"`
}

// MarshalJSON writes the variant under "attrs".
func (p Product) MarshalJSON() ([]byte, error) {
	out := productJSON{
		ID: p.ID, SKU: p.SKU, Name: p.Name, Kind: p.Kind, Category: p.Category,
		Unit: p.Unit, Quantity: p.Quantity, Minimum: p.Minimum, UnitCost: p.UnitCost,
	}
	if p.Attrs != nil {
		raw, err := json.Marshal(p.Attrs)
		if err != nil {
			return nil, fmt.Errorf("encode attrs of %s: %w", p.SKU, err)
		}
		out.Attrs = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes "attrs" into the variant the category calls for.
func (p *Product) UnmarshalJSON(data []byte) error {
	var in productJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Product{
		ID: in.ID, SKU: in.SKU, Name: in.Name, Kind: in.Kind, Category: in.Category,
		Unit: in.Unit, Quantity: in.Quantity, Minimum: in.Minimum, UnitCost: in.UnitCost,
	}
	if len(in.Attrs) == 0 || string(in.Attrs) == "null" {
		return nil
	}
	v := NewVariant(in.Category)
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(in.Attrs, v); err != nil {
		return fmt.Errorf("decode attrs of %s: %w", in.SKU, err)
	}
	p.Attrs = v
	return nil
}
