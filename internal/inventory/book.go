package inventory

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrUnknownProduct is returned when a movement names a missing product.
	ErrUnknownProduct = errors.New("unknown product")
	// ErrInvalidQuantity is returned for unparseable or non-positive amounts.
	ErrInvalidQuantity = errors.New("invalid quantity")
)

// Epsilon is the tolerance for comparing measured attributes.
var Epsilon = decimal.New(1, -3)

// ApproxEqual reports |a-b| < Epsilon.
func ApproxEqual(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThan(Epsilon)
}

// Direction of a stock movement.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// Movement is one immutable line of stock history.
type Movement struct {
	ID             string          `json:"id"`
	Timestamp      time.Time       `json:"timestamp"`
	User           string          `json:"user,omitempty"`
	ProductID      string          `json:"product_id"`
	Direction      Direction       `json:"direction"`
	Amount         decimal.Decimal `json:"amount"`
	QuantityBefore decimal.Decimal `json:"quantity_before"`
	QuantityAfter  decimal.Decimal `json:"quantity_after"`
	Note           string          `json:"note,omitempty"`
	Shortage       bool            `json:"shortage,omitempty"` // stock went below what was asked for
}

// Book is the inventory collection: catalog plus movement history.
type Book struct {
	Products  []Product  `json:"products"`
	Movements []Movement `json:"movements"`
}

// NewBook returns an empty book.
func NewBook() Book {
	return Book{Products: []Product{}, Movements: []Movement{}}
}

// Product returns a copy of the product with the given id.
func (b *Book) Product(id string) (Product, bool) {
	if i := b.index(id); i >= 0 {
		return b.Products[i], true
	}
	return Product{}, false
}

// BySKU returns the product with the given SKU.
func (b *Book) BySKU(sku string) (Product, bool) {
	for _, p := range b.Products {
		if strings.EqualFold(p.SKU, sku) {
			return p, true
		}
	}
	return Product{}, false
}

// Lookup finds a product by id or SKU.
func (b *Book) Lookup(ref string) (Product, bool) {
	if p, ok := b.Product(ref); ok {
		return p, true
	}
	return b.BySKU(ref)
}

func (b *Book) index(id string) int {
	for i, p := range b.Products {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// Upsert adds p or replaces the product with the same id. A product without
// id gets one. Quantity of an existing product is kept: stock only changes
// through movements.
func (b *Book) Upsert(p Product) Product {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if i := b.index(p.ID); i >= 0 {
		p.Quantity = b.Products[i].Quantity
		b.Products[i] = p
		return p
	}
	b.Products = append(b.Products, p)
	return p
}

// Move applies a stock movement and records it. An outgoing movement larger
// than the stock on hand still proceeds; the returned movement is flagged
// as a shortage and stock goes negative.
func (b *Book) Move(productID string, dir Direction, amount decimal.Decimal, user, note string, now time.Time) (Movement, error) {
	i := b.index(productID)
	if i < 0 {
		return Movement{}, fmt.Errorf("%w: %s", ErrUnknownProduct, productID)
	}
	if !amount.IsPositive() {
		return Movement{}, fmt.Errorf("%w: %s", ErrInvalidQuantity, amount)
	}

	p := &b.Products[i]
	m := Movement{
		ID:             uuid.NewString(),
		Timestamp:      now.UTC(),
		User:           user,
		ProductID:      productID,
		Direction:      dir,
		Amount:         amount,
		QuantityBefore: p.Quantity,
		Note:           note,
	}
	switch dir {
	case In:
		p.Quantity = p.Quantity.Add(amount)
	case Out:
		if p.Quantity.LessThan(amount) {
			m.Shortage = true
			m.Note = strings.TrimSpace(fmt.Sprintf("%s [shortage: needed %s, had %s]", note, amount, p.Quantity))
		}
		p.Quantity = p.Quantity.Sub(amount)
	default:
		return Movement{}, fmt.Errorf("unknown direction %q", dir)
	}
	m.QuantityAfter = p.Quantity

	b.Movements = append(b.Movements, m)
	return m, nil
}

// History returns the movements of one product, oldest first.
func (b *Book) History(productID string) []Movement {
	var out []Movement
	for _, m := range b.Movements {
		if m.ProductID == productID {
			out = append(out, m)
		}
	}
	return out
}

// ParseQuantity reads a quantity typed by an operator. Both "5,50" and
// "5.5" mean five and a half; "1.000" and "1.234.567" use dots as thousands
// separators. A dotted value that would read as thousands but starts with a
// zero group, like "0.125", is ambiguous and rejected; "0,125" is the
// fraction. Anything else that is not a number is rejected.
func ParseQuantity(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, " ", ""))
	if s == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty", ErrInvalidQuantity)
	}

	normalized := s
	if strings.Contains(s, ",") {
		normalized = strings.ReplaceAll(s, ".", "")
		if strings.Count(normalized, ",") > 1 {
			return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
		}
		normalized = strings.Replace(normalized, ",", ".", 1)
	} else if parts := strings.Split(s, "."); len(parts) > 2 || (len(parts) == 2 && len(parts[1]) == 3) {
		lead := strings.TrimLeft(parts[0], "+-")
		if lead == "" || strings.HasPrefix(lead, "0") {
			return decimal.Decimal{}, fmt.Errorf("%w: %q is ambiguous, write %q for a fraction", ErrInvalidQuantity, s, strings.Replace(s, ".", ",", 1))
		}
		normalized = strings.ReplaceAll(s, ".", "")
	}

	d, err := decimal.NewFromString(normalized)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidQuantity, s)
	}
	return d, nil
}

// ParsePositive is ParseQuantity that also rejects zero and negatives.
func ParsePositive(s string) (decimal.Decimal, error) {
	d, err := ParseQuantity(s)
	if err != nil {
		return d, err
	}
	if !d.IsPositive() {
		return decimal.Decimal{}, fmt.Errorf("%w: %q must be positive", ErrInvalidQuantity, s)
	}
	return d, nil
}
