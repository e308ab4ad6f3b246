package inventory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Attribute names shared by products, recipes and customer orders.
const (
	AttrKW             = "kw"
	AttrRPM            = "rpm"
	AttrVolt           = "volt"
	AttrShaftCode      = "shaft_code"
	AttrCover          = "cover"
	AttrTerminalSide   = "terminal_side"
	AttrMountingHole   = "mounting_hole"
	AttrConnectionType = "connection_type"
)

// Variant is the category-specific part of a product.
type Variant interface {
	Number(name string) (decimal.Decimal, bool)
	Text(name string) string
}

// NewVariant returns an empty variant for the category, or nil when the
// category carries no attributes.
func NewVariant(c Category) Variant {
	switch c {
	case CategoryWoundPackage:
		return &Electrical{}
	case CategoryHousedPackage:
		return &HousingAttrs{}
	case CategoryShaft, CategoryRotorShaft, CategoryGroundShaft:
		return &ShaftAttrs{}
	case CategoryMotor:
		return &MotorAttrs{}
	}
	return nil
}

// Electrical is the rating of a winding.
type Electrical struct {
	KW   *decimal.Decimal `json:"kw,omitempty"`
	RPM  *decimal.Decimal `json:"rpm,omitempty"`
	Volt *decimal.Decimal `json:"volt,omitempty"`
}

func (e Electrical) Number(name string) (decimal.Decimal, bool) {
	var v *decimal.Decimal
	switch name {
	case AttrKW:
		v = e.KW
	case AttrRPM:
		v = e.RPM
	case AttrVolt:
		v = e.Volt
	}
	if v == nil {
		return decimal.Decimal{}, false
	}
	return *v, true
}

func (Electrical) Text(string) string { return "" }

// HousingAttrs describes a wound package pressed into its housing.
type HousingAttrs struct {
	Electrical
	TerminalSide string `json:"terminal_side,omitempty"`
	MountingHole string `json:"mounting_hole,omitempty"`
}

func (h HousingAttrs) Text(name string) string {
	switch name {
	case AttrTerminalSide:
		return h.TerminalSide
	case AttrMountingHole:
		return h.MountingHole
	}
	return ""
}

// ShaftAttrs identifies a shaft drawing.
type ShaftAttrs struct {
	Code string `json:"shaft_code,omitempty"`
}

func (ShaftAttrs) Number(string) (decimal.Decimal, bool) { return decimal.Decimal{}, false }

func (s ShaftAttrs) Text(name string) string {
	if name == AttrShaftCode {
		return s.Code
	}
	return ""
}

// MotorAttrs is the full build specification of a motor. Customer orders
// carry one even when no catalog product exists for it.
type MotorAttrs struct {
	Electrical
	ShaftCode      string `json:"shaft_code,omitempty"`
	Cover          string `json:"cover,omitempty"`
	TerminalSide   string `json:"terminal_side,omitempty"`
	MountingHole   string `json:"mounting_hole,omitempty"`
	ConnectionType string `json:"connection_type,omitempty"`
}

func (m MotorAttrs) Text(name string) string {
	switch name {
	case AttrShaftCode:
		return m.ShaftCode
	case AttrCover:
		return m.Cover
	case AttrTerminalSide:
		return m.TerminalSide
	case AttrMountingHole:
		return m.MountingHole
	case AttrConnectionType:
		return m.ConnectionType
	}
	return ""
}

// BuildVariant fills the category's variant from name/value pairs, as typed
// on a command line. Numbers accept locale formatting; blank values are
// skipped. Naming an attribute the category does not carry is an error.
func BuildVariant(c Category, attrs map[string]string) (Variant, error) {
	names := make([]string, 0, len(attrs))
	for name, raw := range attrs {
		if strings.TrimSpace(raw) != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	v := NewVariant(c)
	if v == nil {
		if len(names) > 0 {
			return nil, fmt.Errorf("category %s carries no attributes, got %s", c, strings.Join(names, ", "))
		}
		return nil, nil
	}

	var elec *Electrical
	switch t := v.(type) {
	case *Electrical:
		elec = t
	case *HousingAttrs:
		elec = &t.Electrical
	case *MotorAttrs:
		elec = &t.Electrical
	}

	for _, name := range names {
		raw := strings.TrimSpace(attrs[name])
		ok := true
		switch name {
		case AttrKW, AttrRPM, AttrVolt:
			if elec == nil {
				ok = false
				break
			}
			d, err := ParseQuantity(raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			switch name {
			case AttrKW:
				elec.KW = &d
			case AttrRPM:
				elec.RPM = &d
			default:
				elec.Volt = &d
			}
		case AttrShaftCode:
			switch t := v.(type) {
			case *ShaftAttrs:
				t.Code = raw
			case *MotorAttrs:
				t.ShaftCode = raw
			default:
				ok = false
			}
		case AttrCover, AttrConnectionType:
			m, isMotor := v.(*MotorAttrs)
			if !isMotor {
				ok = false
				break
			}
			if name == AttrCover {
				m.Cover = raw
			} else {
				m.ConnectionType = raw
			}
		case AttrTerminalSide, AttrMountingHole:
			switch t := v.(type) {
			case *HousingAttrs:
				if name == AttrTerminalSide {
					t.TerminalSide = raw
				} else {
					t.MountingHole = raw
				}
			case *MotorAttrs:
				if name == AttrTerminalSide {
					t.TerminalSide = raw
				} else {
					t.MountingHole = raw
				}
			default:
				ok = false
			}
		default:
			ok = false
		}
		if !ok {
			return nil, fmt.Errorf("category %s has no attribute %s", c, name)
		}
	}
	return v, nil
}

// Dec is a convenience for building attribute values.
func Dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}
