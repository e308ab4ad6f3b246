package production

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imkarma/shopfloor/internal/bom"
	"github.com/imkarma/shopfloor/internal/inventory"
	"github.com/imkarma/shopfloor/internal/txn"
)

// TaskStatus is the aggregate progress of a task.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// Task is the part shared by customer orders and replenishment work orders.
type Task struct {
	ID        string                   `json:"id"`
	No        string                   `json:"no"`
	Quantity  decimal.Decimal          `json:"quantity"`
	Status    TaskStatus               `json:"status"`
	Stages    map[StageKey]StageRecord `json:"stages"`
	CreatedAt time.Time                `json:"created_at"`
	CreatedBy string                   `json:"created_by,omitempty"`
	DueDate   *time.Time               `json:"due_date,omitempty"`
}

// Complete reports whether every stage is ready.
func (t Task) Complete() bool {
	if len(t.Stages) == 0 {
		return false
	}
	for _, r := range t.Stages {
		if r.Status != StatusReady {
			return false
		}
	}
	return true
}

// StageKeys returns the task's stages in routing order.
func (t Task) StageKeys() []StageKey {
	keys := make([]StageKey, 0, len(t.Stages))
	for _, k := range StageOrder {
		if _, ok := t.Stages[k]; ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// Progress counts ready stages.
func (t Task) Progress() (ready, total int) {
	for _, r := range t.Stages {
		if r.Status == StatusReady {
			ready++
		}
	}
	return ready, len(t.Stages)
}

// deriveStatus recomputes Status from the stages.
func (t *Task) deriveStatus() {
	switch {
	case t.Complete():
		t.Status = TaskDone
	case t.anyStage(StatusInProgress):
		t.Status = TaskInProgress
	default:
		t.Status = TaskPending
	}
}

func (t Task) anyStage(s StageStatus) bool {
	for _, r := range t.Stages {
		if r.Status == s {
			return true
		}
	}
	return false
}

// CustomerTask is production for a sales order.
type CustomerTask struct {
	Task
	CustomerID string               `json:"customer_id"`
	ProductID  string               `json:"product_id,omitempty"` // catalog target, if the order names one
	Spec       inventory.MotorAttrs `json:"spec"`
	Note       string               `json:"note,omitempty"`
	Cancelled  bool                 `json:"cancelled,omitempty"`
}

// FinalStage is where a customer order consumes its components.
func (CustomerTask) FinalStage() StageKey { return StageAssembly }

// Open reports whether the order still has unconsumed demand.
func (c CustomerTask) Open() bool {
	return !c.Cancelled && !c.Complete() && c.Stages[c.FinalStage()].Status != StatusReady
}

// Subject is what the recipe resolver sees for this order at assembly and
// in the commitment ledger: its customer and its own attributes.
func (c CustomerTask) Subject() bom.Subject {
	return bom.Subject{CustomerID: c.CustomerID, Attrs: c.Spec}
}

// seedSubject is used once, when the order is created. An order naming a
// catalog product picks its recipe by that product's SKU alone.
func (c CustomerTask) seedSubject(book *inventory.Book) bom.Subject {
	if c.ProductID != "" {
		if p, ok := book.Product(c.ProductID); ok {
			return bom.Subject{CustomerID: c.CustomerID, TargetSKU: p.SKU}
		}
	}
	return c.Subject()
}

// ReplenishmentTask is an internal work order to make stock of a product.
type ReplenishmentTask struct {
	Task
	ProductID string `json:"product_id"`
	Automatic bool   `json:"automatic,omitempty"` // spawned by the low-stock trigger
}

// FinalStage is the last stage in routing order the work order has.
func (r ReplenishmentTask) FinalStage() StageKey {
	keys := r.StageKeys()
	if len(keys) == 0 {
		return ""
	}
	return keys[len(keys)-1]
}

// Open reports whether the work order still has unconsumed demand.
func (r ReplenishmentTask) Open() bool {
	return !r.Complete() && r.Stages[r.FinalStage()].Status != StatusReady
}

// Active reports whether the work order still counts against spawning another.
func (r ReplenishmentTask) Active() bool {
	return r.Status != TaskDone
}

// Subject is what the recipe resolver sees for this work order. Work orders
// pick their recipe by the product's SKU alone.
func (r ReplenishmentTask) Subject(book *inventory.Book) (bom.Subject, bool) {
	p, ok := book.Product(r.ProductID)
	if !ok {
		return bom.Subject{}, false
	}
	return productSubject(p), true
}

func productSubject(p inventory.Product) bom.Subject {
	return bom.Subject{TargetSKU: p.SKU}
}

// Collections stored under the shared root.
var (
	Orders = txn.Collection[[]CustomerTask]{
		Key:     "orders",
		Default: func() []CustomerTask { return []CustomerTask{} },
	}
	WorkOrders = txn.Collection[[]ReplenishmentTask]{
		Key:     "work_orders",
		Default: func() []ReplenishmentTask { return []ReplenishmentTask{} },
	}
	Inventory = txn.Collection[inventory.Book]{
		Key:     "inventory",
		Default: inventory.NewBook,
	}
	Recipes = txn.Collection[[]bom.Recipe]{
		Key:     "recipes",
		Default: func() []bom.Recipe { return []bom.Recipe{} },
	}
)

// nextNumber returns prefix-YYMM-NNN, one past the highest number already
// used with the same prefix and month.
func nextNumber(prefix string, now time.Time, existing []string) string {
	stem := fmt.Sprintf("%s-%s-", prefix, now.Format("0601"))
	highest := 0
	for _, no := range existing {
		if !strings.HasPrefix(no, stem) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(no, stem))
		if err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%03d", stem, highest+1)
}

func orderNumbers(orders []CustomerTask) []string {
	out := make([]string, len(orders))
	for i, o := range orders {
		out[i] = o.No
	}
	return out
}

func workOrderNumbers(wos []ReplenishmentTask) []string {
	out := make([]string, len(wos))
	for i, w := range wos {
		out[i] = w.No
	}
	return out
}

// openDemands lists the component claims of every open task.
func openDemands(orders []CustomerTask, wos []ReplenishmentTask, book *inventory.Book) []bom.Demand {
	var out []bom.Demand
	for _, o := range orders {
		if o.Open() {
			out = append(out, bom.Demand{TaskID: o.ID, Quantity: o.Quantity, Subject: o.Subject()})
		}
	}
	for _, w := range wos {
		if !w.Open() {
			continue
		}
		if s, ok := w.Subject(book); ok {
			out = append(out, bom.Demand{TaskID: w.ID, Quantity: w.Quantity, Subject: s})
		}
	}
	return out
}
