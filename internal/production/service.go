// Package production tracks manufacturing progress per task and stage and
// keeps inventory in step with it. Every operation runs as one transaction
// over the orders, work orders and inventory collections.
package production

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/imkarma/shopfloor/internal/inventory"
	"github.com/imkarma/shopfloor/internal/txn"
)

// Identity supplies the acting user.
type Identity interface {
	Username() string
}

// StaticUser is an Identity with a fixed name.
type StaticUser string

func (u StaticUser) Username() string { return string(u) }

// Options tune the production rules.
type Options struct {
	BatchSize           decimal.Decimal // quantity of automatic work orders
	GrindingFreeCovers  []string        // cover types that skip cover grinding
	CustomerPrefix      string
	ReplenishmentPrefix string
	Clock               func() time.Time
}

// DefaultOptions returns the shop's standard rules.
func DefaultOptions() Options {
	return Options{
		BatchSize:           decimal.NewFromInt(20),
		GrindingFreeCovers:  []string{"AK"},
		CustomerPrefix:      "CO",
		ReplenishmentPrefix: "RT",
	}
}

// Service is the entry point for task creation and stage transitions.
type Service struct {
	engine   *txn.Engine
	identity Identity
	notifier Notifier
	opts     Options
	validate *validator.Validate
	log      *logrus.Entry
}

// NewService wires a service. A nil notifier drops notices.
func NewService(engine *txn.Engine, identity Identity, notifier Notifier, opts Options, log *logrus.Entry) *Service {
	def := DefaultOptions()
	if !opts.BatchSize.IsPositive() {
		opts.BatchSize = def.BatchSize
	}
	if opts.CustomerPrefix == "" {
		opts.CustomerPrefix = def.CustomerPrefix
	}
	if opts.ReplenishmentPrefix == "" {
		opts.ReplenishmentPrefix = def.ReplenishmentPrefix
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		engine:   engine,
		identity: identity,
		notifier: notifier,
		opts:     opts,
		validate: validator.New(),
		log:      log.WithField("module", "production"),
	}
}

// Engine returns the transaction engine the service writes through.
func (s *Service) Engine() *txn.Engine { return s.engine }

func (s *Service) now() time.Time {
	if s.opts.Clock != nil {
		return s.opts.Clock()
	}
	return time.Now()
}

func (s *Service) user() string {
	if s.identity == nil {
		return ""
	}
	return s.identity.Username()
}

func (s *Service) grindingFree(cover string) bool {
	cover = strings.TrimSpace(cover)
	if cover == "" {
		return false
	}
	for _, c := range s.opts.GrindingFreeCovers {
		if strings.EqualFold(c, cover) {
			return true
		}
	}
	return false
}

// run executes fn in a transaction stamped with the acting user, and hands
// the notices of the committed attempt to the notifier.
func (s *Service) run(ctx context.Context, fn func(o *op) error, write func(tx *txn.Tx, o *op) error) (bool, *op, error) {
	user := s.user()
	ctx = txn.ContextWithUser(ctx, user)

	var last *op
	committed, err := s.engine.Run(ctx, func(tx *txn.Tx) error {
		o, err := s.begin(tx, user)
		if err != nil {
			return err
		}
		last = o
		if err := fn(o); err != nil {
			return err
		}
		if write != nil {
			return write(tx, o)
		}
		return o.commit(tx)
	})
	if err != nil {
		return false, nil, err
	}
	if committed && last != nil {
		s.notifier.Notify(last.notices)
	}
	return committed, last, nil
}

// OrderInput is a customer order as typed by an operator. Numeric attributes
// accept locale formatting ("5,50").
type OrderInput struct {
	CustomerID     string `validate:"required"`
	Product        string // catalog id or SKU, optional
	Quantity       string `validate:"required"`
	KW             string
	RPM            string
	Volt           string
	ShaftCode      string
	Cover          string
	TerminalSide   string
	MountingHole   string
	ConnectionType string
	Note           string
	DueDate        *time.Time
}

func optionalNumber(field, v string) (*decimal.Decimal, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	d, err := inventory.ParseQuantity(v)
	if err != nil {
		return nil, invalid(field, "%v", err)
	}
	return &d, nil
}

func (in OrderInput) spec() (inventory.MotorAttrs, error) {
	var m inventory.MotorAttrs
	var err error
	if m.KW, err = optionalNumber("kw", in.KW); err != nil {
		return m, err
	}
	if m.RPM, err = optionalNumber("rpm", in.RPM); err != nil {
		return m, err
	}
	if m.Volt, err = optionalNumber("volt", in.Volt); err != nil {
		return m, err
	}
	m.ShaftCode = strings.TrimSpace(in.ShaftCode)
	m.Cover = strings.TrimSpace(in.Cover)
	m.TerminalSide = strings.TrimSpace(in.TerminalSide)
	m.MountingHole = strings.TrimSpace(in.MountingHole)
	m.ConnectionType = strings.TrimSpace(in.ConnectionType)
	return m, nil
}

// fillFrom copies attributes the order left blank from a catalog motor.
func fillFrom(m inventory.MotorAttrs, p inventory.Product) inventory.MotorAttrs {
	num := func(cur *decimal.Decimal, name string) *decimal.Decimal {
		if cur != nil {
			return cur
		}
		if v, ok := p.Number(name); ok {
			return &v
		}
		return nil
	}
	txt := func(cur, name string) string {
		if cur != "" {
			return cur
		}
		return p.Text(name)
	}
	m.KW = num(m.KW, inventory.AttrKW)
	m.RPM = num(m.RPM, inventory.AttrRPM)
	m.Volt = num(m.Volt, inventory.AttrVolt)
	m.ShaftCode = txt(m.ShaftCode, inventory.AttrShaftCode)
	m.Cover = txt(m.Cover, inventory.AttrCover)
	m.TerminalSide = txt(m.TerminalSide, inventory.AttrTerminalSide)
	m.MountingHole = txt(m.MountingHole, inventory.AttrMountingHole)
	m.ConnectionType = txt(m.ConnectionType, inventory.AttrConnectionType)
	return m
}

// CreateCustomerTask opens production for a sales order, seeding stages that
// are already covered by stock or need no work.
func (s *Service) CreateCustomerTask(ctx context.Context, in OrderInput) (CustomerTask, error) {
	if err := s.validate.Struct(in); err != nil {
		return CustomerTask{}, fromValidator(err)
	}
	qty, err := inventory.ParsePositive(in.Quantity)
	if err != nil {
		return CustomerTask{}, invalid("quantity", "%v", err)
	}
	spec, err := in.spec()
	if err != nil {
		return CustomerTask{}, err
	}

	var created CustomerTask
	_, _, err = s.run(ctx, func(o *op) error {
		t := CustomerTask{
			Task: Task{
				ID:        uuid.NewString(),
				No:        nextNumber(s.opts.CustomerPrefix, o.now, orderNumbers(o.orders)),
				Quantity:  qty,
				CreatedAt: o.now,
				CreatedBy: o.user,
				DueDate:   in.DueDate,
			},
			CustomerID: strings.TrimSpace(in.CustomerID),
			Spec:       spec,
			Note:       in.Note,
		}
		if ref := strings.TrimSpace(in.Product); ref != "" {
			p, ok := o.book.Lookup(ref)
			if !ok {
				return invalid("product", "unknown product %q", ref)
			}
			t.ProductID = p.ID
			t.Spec = fillFrom(t.Spec, p)
		}

		t.Stages = o.seed(StageOrder, t.ID, qty, t.seedSubject(&o.book), t.Spec.Cover)
		t.deriveStatus()
		o.orders = append(o.orders, t)
		created = t

		ready, total := t.Progress()
		o.info(t.No, KindTaskCreated, fmt.Sprintf("order %s opened for %s (%d/%d stages ready)", t.No, t.CustomerID, ready, total))
		return nil
	}, nil)
	if err != nil {
		return CustomerTask{}, fmt.Errorf("create customer task: %w", err)
	}
	return created, nil
}

// CreateReplenishmentTask opens a work order to produce quantity of a
// non-raw product, referenced by id or SKU.
func (s *Service) CreateReplenishmentTask(ctx context.Context, productRef string, quantity decimal.Decimal, due *time.Time) (ReplenishmentTask, error) {
	if strings.TrimSpace(productRef) == "" {
		return ReplenishmentTask{}, invalid("product", "required")
	}
	if !quantity.IsPositive() {
		return ReplenishmentTask{}, invalid("quantity", "must be positive, got %s", quantity)
	}

	var created ReplenishmentTask
	_, _, err := s.run(ctx, func(o *op) error {
		p, ok := o.book.Lookup(productRef)
		if !ok {
			return invalid("product", "unknown product %q", productRef)
		}
		if p.Kind == inventory.KindRaw {
			return invalid("product", "%s is purchased, not produced", p.SKU)
		}
		keys, ok := stagesFor(p)
		if !ok {
			return invalid("product", "category %s has no production stage", p.Category)
		}
		w := o.newWorkOrder(p, quantity, keys, due, false)
		o.wos = append(o.wos, w)
		created = w
		o.info(w.No, KindTaskCreated, fmt.Sprintf("work order %s opened for %s %s", w.No, w.Quantity, p.SKU))
		return nil
	}, nil)
	if err != nil {
		return ReplenishmentTask{}, fmt.Errorf("create replenishment task: %w", err)
	}
	return created, nil
}

// Result reports what a stage transition did.
type Result struct {
	Committed  bool
	TaskNo     string
	Stage      StageKey
	Status     StageStatus
	TaskStatus TaskStatus
	Notices    []Notice
	Spawned    []ReplenishmentTask
}

// Transition moves one stage of a task (by id or number) to status to and
// applies its inventory consequences in the same write. Moving a stage to
// the status it already has changes nothing and reports Committed=false.
func (s *Service) Transition(ctx context.Context, taskRef string, stage StageKey, to StageStatus) (Result, error) {
	if !stage.Valid() {
		return Result{}, invalid("stage", "unknown stage %q", stage)
	}
	if !to.Valid() {
		return Result{}, invalid("status", "unknown status %q", to)
	}

	var res Result
	committed, o, err := s.run(ctx, func(o *op) error {
		res = Result{Stage: stage, Status: to}
		if i := o.findOrder(taskRef); i >= 0 {
			return o.transitionOrder(i, stage, to, &res)
		}
		if i := o.findWorkOrder(taskRef); i >= 0 {
			return o.transitionWorkOrder(i, stage, to, &res)
		}
		return fmt.Errorf("%w: %s", ErrTaskNotFound, taskRef)
	}, nil)
	if err != nil {
		return Result{}, fmt.Errorf("transition %s/%s: %w", taskRef, stage, err)
	}

	res.Committed = committed
	if committed {
		res.Notices = o.notices
		res.Spawned = o.spawned
	}
	return res, nil
}

func (o *op) transitionOrder(i int, stage StageKey, to StageStatus, res *Result) error {
	t := &o.orders[i]
	res.TaskNo = t.No
	res.TaskStatus = t.Status
	if t.Cancelled {
		return invalid("task", "%s is cancelled", t.No)
	}
	rec, ok := t.Stages[stage]
	if !ok {
		return invalid("stage", "%s has no stage %s", t.No, stage)
	}
	if rec.Status == to {
		return nil
	}
	if err := checkTransition(stage, rec.Status, to); err != nil {
		return err
	}

	t.Stages[stage] = rec.Apply(to, o.user, o.now)
	t.deriveStatus()
	res.TaskStatus = t.Status
	o.info(t.No, KindStageChanged, fmt.Sprintf("%s %s: %s -> %s", t.No, stage, rec.Status, to))

	if stage == t.FinalStage() {
		subj := t.Subject()
		switch {
		case to == StatusReady:
			if err := o.moveComponents(subj, t.Quantity, t.No, inventory.Out); err != nil {
				return err
			}
		case rec.Status == StatusReady:
			if err := o.moveComponents(subj, t.Quantity, t.No, inventory.In); err != nil {
				return err
			}
		}
	}
	o.replenish()
	return nil
}

func (o *op) transitionWorkOrder(i int, stage StageKey, to StageStatus, res *Result) error {
	w := &o.wos[i]
	res.TaskNo = w.No
	res.TaskStatus = w.Status
	rec, ok := w.Stages[stage]
	if !ok {
		return invalid("stage", "%s has no stage %s", w.No, stage)
	}
	if rec.Status == to {
		return nil
	}
	if err := checkTransition(stage, rec.Status, to); err != nil {
		return err
	}

	w.Stages[stage] = rec.Apply(to, o.user, o.now)
	w.deriveStatus()
	res.TaskStatus = w.Status
	o.info(w.No, KindStageChanged, fmt.Sprintf("%s %s: %s -> %s", w.No, stage, rec.Status, to))

	if stage == w.FinalStage() && (to == StatusReady || rec.Status == StatusReady) {
		// Copy what we need before o.wos can grow in replenish.
		no, qty, productID := w.No, w.Quantity, w.ProductID
		p, ok := o.book.Product(productID)
		if !ok {
			o.warn(no, KindNoRecipe, fmt.Sprintf("%s: product %s no longer in catalog, stock not moved", no, productID), nil)
			return nil
		}
		produced, consumed := inventory.In, inventory.Out
		if to != StatusReady {
			produced, consumed = inventory.Out, inventory.In
		}
		if p.Kind != inventory.KindRaw {
			verb := "produced"
			if produced == inventory.Out {
				verb = "production undone"
			}
			if err := o.move(p.ID, produced, qty, no, fmt.Sprintf("%s %s", no, verb)); err != nil {
				return err
			}
		}
		if err := o.moveComponents(productSubject(p), qty, no, consumed); err != nil {
			return err
		}
	}
	o.replenish()
	return nil
}
