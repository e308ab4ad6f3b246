package production

import (
	"errors"
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

// op is one attempt of a business operation: the collections as read inside
// the transaction plus everything the attempt decided. A retry builds a new op.
type op struct {
	s       *Service
	user    string
	now     time.Time
	orders  []CustomerTask
	wos     []ReplenishmentTask
	book    inventory.Book
	recipes []bom.Recipe

	notices []Notice
	debited []string
	spawned []ReplenishmentTask
}

func (s *Service) begin(tx *txn.Tx, user string) (*op, error) {
	o := &op{s: s, user: user, now: s.now().UTC()}
	var err error
	if o.orders, err = txn.Read(tx, Orders); err != nil {
		return nil, err
	}
	if o.wos, err = txn.Read(tx, WorkOrders); err != nil {
		return nil, err
	}
	if o.book, err = txn.Read(tx, Inventory); err != nil {
		return nil, err
	}
	if o.recipes, err = txn.Read(tx, Recipes); err != nil {
		return nil, err
	}
	return o, nil
}

// commit stages the task and inventory collections. Unchanged ones are
// dropped by the transaction.
func (o *op) commit(tx *txn.Tx) error {
	if err := txn.Write(tx, Orders, o.orders); err != nil {
		return err
	}
	if err := txn.Write(tx, WorkOrders, o.wos); err != nil {
		return err
	}
	return txn.Write(tx, Inventory, o.book)
}

func (o *op) info(taskNo, kind, msg string) {
	o.notices = append(o.notices, Notice{Level: LevelInfo, TaskNo: taskNo, Kind: kind, Message: msg})
}

func (o *op) warn(taskNo, kind, msg string, err error) {
	o.notices = append(o.notices, Notice{Level: LevelWarning, TaskNo: taskNo, Kind: kind, Message: msg, Err: err})
}

func (o *op) findOrder(ref string) int {
	for i, t := range o.orders {
		if t.ID == ref || strings.EqualFold(t.No, ref) {
			return i
		}
	}
	return -1
}

func (o *op) findWorkOrder(ref string) int {
	for i, t := range o.wos {
		if t.ID == ref || strings.EqualFold(t.No, ref) {
			return i
		}
	}
	return -1
}

func (o *op) hasActiveWorkOrder(productID string) bool {
	for _, w := range o.wos {
		if w.ProductID == productID && w.Active() {
			return true
		}
	}
	return false
}

// move records one stock movement. Shortages are warnings, unknown products
// referenced by a recipe are skipped with a warning. A movement without a
// task is a manual adjustment.
func (o *op) move(productID string, dir inventory.Direction, amount decimal.Decimal, taskNo, note string) error {
	if !amount.IsPositive() {
		return nil
	}
	m, err := o.book.Move(productID, dir, amount, o.user, note, o.now)
	if errors.Is(err, inventory.ErrUnknownProduct) {
		o.warn(taskNo, KindNoRecipe, fmt.Sprintf("component %s is not in the catalog; not moved", productID), err)
		return nil
	}
	if err != nil {
		return err
	}

	p, _ := o.book.Product(productID)
	label, debit, credit := taskNo, KindStockDebited, KindStockCredited
	if taskNo == "" {
		label, debit, credit = "adjustment", KindStockAdjusted, KindStockAdjusted
	}
	if dir == inventory.Out {
		o.debited = append(o.debited, productID)
		o.info(taskNo, debit, fmt.Sprintf("%s: %s %s debited (now %s)", label, amount, p.SKU, m.QuantityAfter))
		if m.Shortage {
			o.warn(taskNo, KindShortage,
				fmt.Sprintf("shortage: %s needed %s, had %s", p.SKU, amount, m.QuantityBefore),
				fmt.Errorf("%w: %s", ErrInsufficientStock, p.SKU))
		}
		return nil
	}
	o.info(taskNo, credit, fmt.Sprintf("%s: %s %s credited (now %s)", label, amount, p.SKU, m.QuantityAfter))
	return nil
}

// moveComponents resolves the recipe for subj and moves quantity times each
// component in dir. Without a recipe nothing moves and a warning is left.
func (o *op) moveComponents(subj bom.Subject, qty decimal.Decimal, taskNo string, dir inventory.Direction) error {
	r, ok := bom.Resolve(subj, o.recipes)
	if !ok {
		o.warn(taskNo, KindNoRecipe, fmt.Sprintf("%s: no recipe applies, components not moved", taskNo), ErrNoApplicableRecipe)
		return nil
	}

	req := r.Requirements(qty)
	ids := make([]string, 0, len(req))
	for id := range req {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	verb := "consumed"
	if dir == inventory.In {
		verb = "returned"
	}
	for _, id := range ids {
		note := fmt.Sprintf("%s %s by recipe %s", taskNo, verb, r.Name)
		if err := o.move(id, dir, req[id], taskNo, note); err != nil {
			return err
		}
	}
	return nil
}

// replenish opens a work order for every debited semi-finished product that
// fell below its minimum and has no active work order yet.
func (o *op) replenish() {
	seen := make(map[string]bool)
	for _, id := range o.debited {
		if seen[id] {
			continue
		}
		seen[id] = true

		p, ok := o.book.Product(id)
		if !ok || p.Kind != inventory.KindSemi || !p.BelowMinimum() {
			continue
		}
		if o.hasActiveWorkOrder(id) {
			continue
		}
		stage, ok := producedAt[p.Category]
		if !ok {
			o.warn("", KindUnmappedStage,
				fmt.Sprintf("%s is below minimum but category %s has no production stage", p.SKU, p.Category), nil)
			continue
		}
		w := o.newWorkOrder(p, o.s.opts.BatchSize, []StageKey{stage}, nil, true)
		o.wos = append(o.wos, w)
		o.spawned = append(o.spawned, w)
		o.info(w.No, KindReplenishment,
			fmt.Sprintf("%s below minimum (%s < %s): work order %s opened for %s", p.SKU, p.Quantity, *p.Minimum, w.No, w.Quantity))
	}
}

// stagesFor returns the routing of a work order producing p.
func stagesFor(p inventory.Product) ([]StageKey, bool) {
	if st, ok := producedAt[p.Category]; ok {
		return []StageKey{st}, true
	}
	if p.Kind == inventory.KindFinished {
		return append([]StageKey(nil), StageOrder...), true
	}
	return nil, false
}

func (o *op) newWorkOrder(p inventory.Product, qty decimal.Decimal, keys []StageKey, due *time.Time, automatic bool) ReplenishmentTask {
	w := ReplenishmentTask{
		Task: Task{
			ID:        uuid.NewString(),
			No:        nextNumber(o.s.opts.ReplenishmentPrefix, o.now, workOrderNumbers(o.wos)),
			Quantity:  qty,
			CreatedAt: o.now,
			CreatedBy: o.user,
			DueDate:   due,
		},
		ProductID: p.ID,
		Automatic: automatic,
	}
	w.Stages = o.seed(keys, w.ID, qty, productSubject(p), p.Text(inventory.AttrCover))
	w.deriveStatus()
	return w
}

// seed builds the initial stage map. A stage starts ready when the cover type
// needs no grinding, or when a recipe component that makes the stage
// unnecessary is available beyond what other open tasks have claimed. The
// final stage always starts waiting.
func (o *op) seed(keys []StageKey, taskID string, qty decimal.Decimal, subj bom.Subject, cover string) map[StageKey]StageRecord {
	stages := make(map[StageKey]StageRecord, len(keys))
	for _, k := range keys {
		stages[k] = StageRecord{Status: StatusWaiting}
	}
	final := StageKey("")
	if len(keys) > 0 {
		final = keys[len(keys)-1]
	}
	ready := func(k StageKey) {
		if _, ok := stages[k]; ok && k != final {
			stages[k] = seededReady(o.now)
		}
	}

	if o.s.grindingFree(cover) {
		ready(StageCoverGrinding)
	}

	r, ok := bom.Resolve(subj, o.recipes)
	if !ok {
		return stages
	}
	committed := bom.Committed(openDemands(o.orders, o.wos, &o.book), o.recipes, taskID)
	for id, need := range r.Requirements(qty) {
		p, ok := o.book.Product(id)
		if !ok {
			continue
		}
		if bom.Available(p.Quantity, committed, id).GreaterThanOrEqual(need) {
			for _, k := range satisfies[p.Category] {
				ready(k)
			}
		}
	}
	return stages
}
