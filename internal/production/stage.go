package production

import (
	"fmt"
	"time"

	"github.com/felixgeelhaar/statekit"

	"github.com/imkarma/shopfloor/internal/inventory"
)

// StageKey names a manufacturing step.
type StageKey string

const (
	StageWinding             StageKey = "winding"
	StageHousing             StageKey = "housing"
	StageShaftMachining      StageKey = "shaft_machining"
	StageRotorShaftMachining StageKey = "rotor_shaft_machining"
	StageRotorShaftGrinding  StageKey = "rotor_shaft_grinding"
	StageCoverMachining      StageKey = "cover_machining"
	StageCoverGrinding       StageKey = "cover_grinding"
	StageAssembly            StageKey = "assembly"
)

// StageOrder is the shop's routing, first to last.
var StageOrder = []StageKey{
	StageWinding,
	StageHousing,
	StageShaftMachining,
	StageRotorShaftMachining,
	StageRotorShaftGrinding,
	StageCoverMachining,
	StageCoverGrinding,
	StageAssembly,
}

// Valid reports whether k is a known stage.
func (k StageKey) Valid() bool {
	for _, s := range StageOrder {
		if s == k {
			return true
		}
	}
	return false
}

// producedAt maps a semi-finished category to the one stage that makes it.
var producedAt = map[inventory.Category]StageKey{
	inventory.CategoryWoundPackage:  StageWinding,
	inventory.CategoryHousedPackage: StageHousing,
	inventory.CategoryGroundShaft:   StageRotorShaftGrinding,
	inventory.CategoryMachinedCover: StageCoverMachining,
	inventory.CategoryGroundCover:   StageCoverGrinding,
	inventory.CategoryRotorShaft:    StageRotorShaftMachining,
	inventory.CategoryShaft:         StageShaftMachining,
}

// satisfies maps a component category to the stages that become unnecessary
// when that component is already in stock.
var satisfies = map[inventory.Category][]StageKey{
	inventory.CategoryWoundPackage:  {StageWinding},
	inventory.CategoryHousedPackage: {StageHousing},
	inventory.CategoryGroundShaft:   {StageShaftMachining, StageRotorShaftMachining, StageRotorShaftGrinding},
	inventory.CategoryMachinedCover: {StageCoverMachining},
	inventory.CategoryGroundCover:   {StageCoverGrinding},
}

// StageStatus is the progress of one stage.
type StageStatus string

// State values double as statekit state ids.
const (
	StatusWaiting    StageStatus = "waiting"
	StatusInProgress StageStatus = "in_progress"
	StatusReady      StageStatus = "ready"
)

// Valid reports whether s is a known stage status.
func (s StageStatus) Valid() bool {
	return s == StatusWaiting || s == StatusInProgress || s == StatusReady
}

// StageRecord is the state of one stage of one task.
type StageRecord struct {
	Status       StageStatus `json:"status"`
	AssignedUser string      `json:"assigned_user,omitempty"`
	StartedAt    *time.Time  `json:"started_at,omitempty"`
	CompletedAt  *time.Time  `json:"completed_at,omitempty"`
	DueDate      *time.Time  `json:"due_date,omitempty"`
}

// Apply moves the record to status to, keeping the timestamp invariants:
// in progress and ready need a start time, ready needs a completion time,
// and waiting clears user and times. The due date always survives.
func (r StageRecord) Apply(to StageStatus, user string, now time.Time) StageRecord {
	now = now.UTC()
	out := StageRecord{Status: to, DueDate: r.DueDate}
	switch to {
	case StatusInProgress:
		out.AssignedUser = user
		out.StartedAt = &now
	case StatusReady:
		out.AssignedUser = r.AssignedUser
		out.StartedAt = r.StartedAt
		if out.AssignedUser == "" {
			out.AssignedUser = user
		}
		if out.StartedAt == nil {
			out.StartedAt = &now
		}
		out.CompletedAt = &now
	}
	return out
}

// seededReady is a stage satisfied at creation time, with no operator.
func seededReady(now time.Time) StageRecord {
	now = now.UTC()
	return StageRecord{Status: StatusReady, StartedAt: &now, CompletedAt: &now}
}

type stageContext struct{}

const (
	eventStart    = "start"
	eventComplete = "complete"
	eventReset    = "reset"
)

func eventFor(to StageStatus) string {
	switch to {
	case StatusInProgress:
		return eventStart
	case StatusReady:
		return eventComplete
	default:
		return eventReset
	}
}

// newStageMachine builds the stage lifecycle starting at from. Waiting may go
// straight to ready when the operator never clicked "start".
func newStageMachine(from StageStatus) (*statekit.Interpreter[stageContext], error) {
	builder := statekit.NewMachine[stageContext]("stage-machine").
		WithInitial(statekit.StateID(from)).
		WithContext(stageContext{})

	builder.State(statekit.StateID(StatusWaiting)).
		On(eventStart).Target(statekit.StateID(StatusInProgress)).
		On(eventComplete).Target(statekit.StateID(StatusReady)).
		Done()

	builder.State(statekit.StateID(StatusInProgress)).
		On(eventComplete).Target(statekit.StateID(StatusReady)).
		On(eventReset).Target(statekit.StateID(StatusWaiting)).
		Done()

	builder.State(statekit.StateID(StatusReady)).
		On(eventReset).Target(statekit.StateID(StatusWaiting)).
		Done()

	machine, err := builder.Build()
	if err != nil {
		return nil, fmt.Errorf("build stage machine: %w", err)
	}
	interp := statekit.NewInterpreter(machine)
	interp.Start()
	return interp, nil
}

// checkTransition verifies from -> to is a legal stage move.
func checkTransition(stage StageKey, from, to StageStatus) error {
	interp, err := newStageMachine(from)
	if err != nil {
		return err
	}
	interp.Send(statekit.Event{Type: statekit.EventType(eventFor(to))})
	if StageStatus(interp.State().Value) != to {
		return &ValidationError{
			Field:  string(stage),
			Reason: fmt.Sprintf("cannot move from %s to %s", from, to),
		}
	}
	return nil
}
