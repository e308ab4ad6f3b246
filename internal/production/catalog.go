package production

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/imkarma/shopfloor/internal/bom"
	"github.com/imkarma/shopfloor/internal/inventory"
	"github.com/imkarma/shopfloor/internal/txn"
)

// UpsertProduct adds or edits a catalog product. The quantity of a new
// product is booked as an opening movement; an existing product's quantity
// is left alone (use AdjustStock).
func (s *Service) UpsertProduct(ctx context.Context, p inventory.Product) (inventory.Product, error) {
	if err := s.validate.Struct(p); err != nil {
		return inventory.Product{}, fromValidator(err)
	}
	if !p.Category.Valid() {
		return inventory.Product{}, invalid("category", "unknown category %q", p.Category)
	}
	if p.Quantity.IsNegative() {
		return inventory.Product{}, invalid("quantity", "opening stock cannot be negative")
	}

	var saved inventory.Product
	_, _, err := s.run(ctx, func(o *op) error {
		np := p
		if other, ok := o.book.BySKU(np.SKU); ok && other.ID != np.ID {
			if np.ID != "" {
				return invalid("sku", "%s already used by another product", np.SKU)
			}
			np.ID = other.ID
		}
		_, exists := o.book.Product(np.ID)
		opening := np.Quantity
		if !exists {
			np.Quantity = decimal.Zero
		}
		saved = o.book.Upsert(np)
		if !exists && opening.IsPositive() {
			if _, err := o.book.Move(saved.ID, inventory.In, opening, o.user, "opening balance", o.now); err != nil {
				return err
			}
			saved, _ = o.book.Product(saved.ID)
		}
		return nil
	}, nil)
	if err != nil {
		return inventory.Product{}, fmt.Errorf("save product: %w", err)
	}
	return saved, nil
}

// UpsertRecipe adds or replaces a recipe. Every component must exist.
func (s *Service) UpsertRecipe(ctx context.Context, r bom.Recipe) (bom.Recipe, error) {
	if err := s.validate.Struct(r); err != nil {
		return bom.Recipe{}, fromValidator(err)
	}
	for _, c := range r.Components {
		if !c.PerUnit.IsPositive() {
			return bom.Recipe{}, invalid("per_unit", "component %s needs a positive quantity", c.ProductID)
		}
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Components = append([]bom.Component(nil), r.Components...)

	_, _, err := s.run(ctx, func(o *op) error {
		for i, c := range r.Components {
			p, ok := o.book.Lookup(c.ProductID)
			if !ok {
				return invalid("component", "unknown product %q", c.ProductID)
			}
			r.Components[i].ProductID = p.ID
		}
		for i := range o.recipes {
			if o.recipes[i].ID == r.ID {
				o.recipes[i] = r
				return nil
			}
		}
		o.recipes = append(o.recipes, r)
		return nil
	}, func(tx *txn.Tx, o *op) error {
		return txn.Write(tx, Recipes, o.recipes)
	})
	if err != nil {
		return bom.Recipe{}, fmt.Errorf("save recipe: %w", err)
	}
	return r, nil
}

// StockResult reports a manual stock adjustment.
type StockResult struct {
	Committed bool
	Movement  inventory.Movement
	Notices   []Notice
	Spawned   []ReplenishmentTask
}

// AdjustStock books a manual movement (goods received, scrap, count
// correction). Outgoing adjustments trigger replenishment like production does.
func (s *Service) AdjustStock(ctx context.Context, productRef string, dir inventory.Direction, amount decimal.Decimal, note string) (StockResult, error) {
	if dir != inventory.In && dir != inventory.Out {
		return StockResult{}, invalid("direction", "must be in or out, got %q", dir)
	}
	if !amount.IsPositive() {
		return StockResult{}, invalid("amount", "must be positive, got %s", amount)
	}

	var res StockResult
	committed, o, err := s.run(ctx, func(o *op) error {
		p, ok := o.book.Lookup(productRef)
		if !ok {
			return invalid("product", "unknown product %q", productRef)
		}
		if note == "" {
			note = "manual adjustment"
		}
		if err := o.move(p.ID, dir, amount, "", note); err != nil {
			return err
		}
		res.Movement = o.book.Movements[len(o.book.Movements)-1]
		o.replenish()
		return nil
	}, nil)
	if err != nil {
		return StockResult{}, fmt.Errorf("adjust stock: %w", err)
	}
	res.Committed = committed
	if committed {
		res.Notices = o.notices
		res.Spawned = o.spawned
	}
	return res, nil
}

// CancelCustomerTask sets or clears the cancel flag of an order. Cancelled
// orders keep their history but claim no stock and accept no transitions.
func (s *Service) CancelCustomerTask(ctx context.Context, taskRef string, cancel bool) (bool, error) {
	committed, _, err := s.run(ctx, func(o *op) error {
		i := o.findOrder(taskRef)
		if i < 0 {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, taskRef)
		}
		t := &o.orders[i]
		if t.Cancelled == cancel {
			return nil
		}
		t.Cancelled = cancel
		verb := "cancelled"
		if !cancel {
			verb = "restored"
		}
		o.info(t.No, KindTaskCancelled, fmt.Sprintf("order %s %s", t.No, verb))
		return nil
	}, nil)
	if err != nil {
		return false, fmt.Errorf("cancel %s: %w", taskRef, err)
	}
	return committed, nil
}

// SetStageDueDate sets (or with nil clears) the due date of one stage.
func (s *Service) SetStageDueDate(ctx context.Context, taskRef string, stage StageKey, due *time.Time) (bool, error) {
	if due != nil {
		d := due.UTC()
		due = &d
	}
	set := func(stages map[StageKey]StageRecord, no string) error {
		rec, ok := stages[stage]
		if !ok {
			return invalid("stage", "%s has no stage %s", no, stage)
		}
		rec.DueDate = due
		stages[stage] = rec
		return nil
	}

	committed, _, err := s.run(ctx, func(o *op) error {
		if i := o.findOrder(taskRef); i >= 0 {
			return set(o.orders[i].Stages, o.orders[i].No)
		}
		if i := o.findWorkOrder(taskRef); i >= 0 {
			return set(o.wos[i].Stages, o.wos[i].No)
		}
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskRef)
	}, nil)
	if err != nil {
		return false, fmt.Errorf("set due date: %w", err)
	}
	return committed, nil
}

// Board is a consistent snapshot of all collections.
type Board struct {
	Revision   int64
	Orders     []CustomerTask
	WorkOrders []ReplenishmentTask
	Inventory  inventory.Book
	Recipes    []bom.Recipe
}

// Board reads every collection at one revision.
func (s *Service) Board(ctx context.Context) (Board, error) {
	var b Board
	err := s.engine.View(ctx, func(tx *txn.Tx) error {
		b.Revision = tx.Revision()
		var err error
		if b.Orders, err = txn.Read(tx, Orders); err != nil {
			return err
		}
		if b.WorkOrders, err = txn.Read(tx, WorkOrders); err != nil {
			return err
		}
		if b.Inventory, err = txn.Read(tx, Inventory); err != nil {
			return err
		}
		b.Recipes, err = txn.Read(tx, Recipes)
		return err
	})
	if err != nil {
		return Board{}, fmt.Errorf("read board: %w", err)
	}
	return b, nil
}

// TaskView is either kind of task found by reference.
type TaskView struct {
	Order     *CustomerTask
	WorkOrder *ReplenishmentTask
}

// Task returns the shared part of whichever task was found.
func (v TaskView) Task() Task {
	if v.Order != nil {
		return v.Order.Task
	}
	return v.WorkOrder.Task
}

// FindTask looks a task up by id or number.
func (b Board) FindTask(ref string) (TaskView, error) {
	for i := range b.Orders {
		if b.Orders[i].ID == ref || strings.EqualFold(b.Orders[i].No, ref) {
			return TaskView{Order: &b.Orders[i]}, nil
		}
	}
	for i := range b.WorkOrders {
		if b.WorkOrders[i].ID == ref || strings.EqualFold(b.WorkOrders[i].No, ref) {
			return TaskView{WorkOrder: &b.WorkOrders[i]}, nil
		}
	}
	return TaskView{}, fmt.Errorf("%w: %s", ErrTaskNotFound, ref)
}

// FindTask reads the board and looks a task up by id or number.
func (s *Service) FindTask(ctx context.Context, ref string) (TaskView, error) {
	b, err := s.Board(ctx)
	if err != nil {
		return TaskView{}, err
	}
	return b.FindTask(ref)
}

// StockLine is one product's stock position.
type StockLine struct {
	Product   inventory.Product
	OnHand    decimal.Decimal
	Committed decimal.Decimal
	Available decimal.Decimal
}

// Stock computes on-hand, committed and available quantities per product,
// sorted by SKU.
func (b Board) Stock() []StockLine {
	committed := bom.Committed(openDemands(b.Orders, b.WorkOrders, &b.Inventory), b.Recipes, "")
	lines := make([]StockLine, 0, len(b.Inventory.Products))
	for _, p := range b.Inventory.Products {
		lines = append(lines, StockLine{
			Product:   p,
			OnHand:    p.Quantity,
			Committed: committed[p.ID],
			Available: bom.Available(p.Quantity, committed, p.ID),
		})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].Product.SKU < lines[j].Product.SKU })
	return lines
}
