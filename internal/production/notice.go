package production

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/imkarma/shopfloor/internal/store"
)

// Level of a notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
)

// Notice is a human-readable account of something an operation did or could
// not do. Notices are advisory and never affect what was committed.
type Notice struct {
	Level   Level  `json:"level"`
	TaskNo  string `json:"task_no,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Notifier receives notices after a successful commit.
type Notifier interface {
	Notify(notices []Notice)
}

// NopNotifier drops everything.
type NopNotifier struct{}

func (NopNotifier) Notify([]Notice) {}

// LogNotifier writes notices to a logger.
type LogNotifier struct {
	Log *logrus.Entry
}

func (n LogNotifier) Notify(notices []Notice) {
	for _, nt := range notices {
		entry := n.Log.WithFields(logrus.Fields{
			"task": nt.TaskNo,
			"kind": nt.Kind,
		})
		if nt.Err != nil {
			entry = entry.WithError(nt.Err)
		}
		if nt.Level == LevelWarning {
			entry.Warn(nt.Message)
		} else {
			entry.Info(nt.Message)
		}
	}
}

// EventRecorder is the part of the SQLite store the audit sink needs.
type EventRecorder interface {
	AddEvent(e store.Event) error
}

// EventNotifier appends notices to the audit log.
type EventNotifier struct {
	Events EventRecorder
	User   string
	Log    *logrus.Entry
}

func (n EventNotifier) Notify(notices []Notice) {
	for _, nt := range notices {
		err := n.Events.AddEvent(store.Event{
			TaskNo:  nt.TaskNo,
			User:    n.User,
			Level:   string(nt.Level),
			Type:    nt.Kind,
			Content: nt.Message,
		})
		if err != nil && n.Log != nil {
			n.Log.WithError(err).Warn("could not record notice")
		}
	}
}

// MultiNotifier fans out to several sinks.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(notices []Notice) {
	for _, n := range m {
		n.Notify(notices)
	}
}

// Warnings filters notices of warning level.
func Warnings(notices []Notice) []Notice {
	var out []Notice
	for _, n := range notices {
		if n.Level == LevelWarning {
			out = append(out, n)
		}
	}
	return out
}

// HasError reports whether any notice carries target.
func HasError(notices []Notice, target error) bool {
	for _, n := range notices {
		if n.Err != nil && errors.Is(n.Err, target) {
			return true
		}
	}
	return false
}

// Notice kinds.
const (
	KindStageChanged  = "stage_changed"
	KindStockDebited  = "stock_debited"
	KindStockCredited = "stock_credited"
	KindShortage      = "shortage"
	KindNoRecipe      = "no_recipe"
	KindReplenishment = "replenishment_spawned"
	KindUnmappedStage = "replenishment_skipped"
	KindTaskCreated   = "task_created"
	KindTaskCancelled = "task_cancelled"
	KindStockAdjusted = "stock_adjusted"
)
