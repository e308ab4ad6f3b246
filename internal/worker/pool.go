// Package worker runs shop-floor operators in parallel. Each operator replays
// its own list of stage transitions through its own service, so the pool
// exercises the optimistic write path the way several terminals on the floor
// would.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/imkarma/shopfloor/internal/production"
)

// Job is one stage transition an operator performs.
type Job struct {
	TaskRef string
	Stage   production.StageKey
	To      production.StageStatus
}

func (j Job) String() string {
	return fmt.Sprintf("%s %s -> %s", j.TaskRef, j.Stage, j.To)
}

// Transitioner is the part of production.Service an operator needs.
type Transitioner interface {
	Transition(ctx context.Context, taskRef string, stage production.StageKey, to production.StageStatus) (production.Result, error)
}

// Operator is a named worker with the jobs it will perform in order.
type Operator struct {
	Name string
	Jobs []Job
}

// JobResult holds the outcome of a single job.
type JobResult struct {
	Job       Job
	Status    string // "done", "noop", "failed"
	Committed bool
	Duration  time.Duration
	Error     error
	Notices   []production.Notice
}

// OperatorResult holds everything one operator did.
type OperatorResult struct {
	Operator string
	Status   string // "done", "idle", "failed"
	Duration time.Duration
	Jobs     []JobResult
	Log      []string // Collected log messages.
}

// Pool manages parallel operators.
type Pool struct {
	maxWorkers  int
	newOperator func(name string) Transitioner
	log         *logrus.Entry
}

// PoolConfig holds configuration for creating a worker pool.
type PoolConfig struct {
	MaxWorkers int
	// NewOperator builds the service an operator works through. Each call
	// should return an independent service (own identity, own origin).
	NewOperator func(name string) Transitioner
	Log         *logrus.Entry
}

// NewPool creates a new worker pool.
func NewPool(pc PoolConfig) *Pool {
	log := pc.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Pool{
		maxWorkers:  pc.MaxWorkers,
		newOperator: pc.NewOperator,
		log:         log.WithField("module", "worker"),
	}
}

// Run executes all operators in parallel (up to maxWorkers at a time)
// and returns results in operator order.
func (p *Pool) Run(ctx context.Context, ops []Operator) []OperatorResult {
	if p.maxWorkers <= 1 || len(ops) <= 1 {
		return p.runSequential(ctx, ops)
	}
	return p.runParallel(ctx, ops)
}

func (p *Pool) runSequential(ctx context.Context, ops []Operator) []OperatorResult {
	var results []OperatorResult
	for _, op := range ops {
		results = append(results, p.execute(ctx, op))
	}
	return results
}

func (p *Pool) runParallel(ctx context.Context, ops []Operator) []OperatorResult {
	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	results := make([]OperatorResult, len(ops))

	for i, op := range ops {
		// Nothing to do, no goroutine.
		if len(op.Jobs) == 0 {
			results[i] = OperatorResult{
				Operator: op.Name,
				Status:   "idle",
				Log:      []string{"No jobs"},
			}
			continue
		}

		wg.Add(1)
		sem <- struct{}{} // Acquire worker slot.

		go func(idx int, o Operator) {
			defer wg.Done()
			defer func() { <-sem }() // Release worker slot.
			results[idx] = p.execute(ctx, o)
		}(i, op)
	}

	wg.Wait()
	return results
}

// execute replays one operator's jobs in order. A failed job is recorded and
// the operator moves on; a cancelled context stops it.
func (p *Pool) execute(ctx context.Context, op Operator) OperatorResult {
	start := time.Now()
	res := OperatorResult{Operator: op.Name, Status: "done"}
	if len(op.Jobs) == 0 {
		res.Status = "idle"
		res.Log = []string{"No jobs"}
		return res
	}

	logf := func(format string, args ...any) {
		res.Log = append(res.Log, fmt.Sprintf(format, args...))
	}

	svc := p.newOperator(op.Name)
	for _, job := range op.Jobs {
		if err := ctx.Err(); err != nil {
			res.Jobs = append(res.Jobs, JobResult{Job: job, Status: "failed", Error: err})
			res.Status = "failed"
			logf("%s: %v", job, err)
			continue
		}

		jobStart := time.Now()
		out, err := svc.Transition(ctx, job.TaskRef, job.Stage, job.To)
		jr := JobResult{Job: job, Duration: time.Since(jobStart), Error: err}
		switch {
		case err != nil:
			jr.Status = "failed"
			res.Status = "failed"
			logf("%s: %v", job, err)
			p.log.WithFields(logrus.Fields{
				"func":     "execute",
				"operator": op.Name,
				"task":     job.TaskRef,
				"stage":    job.Stage,
			}).WithError(err).Warn("transition failed")
		case out.Committed:
			jr.Status = "done"
			jr.Committed = true
			jr.Notices = out.Notices
			logf("%s (task %s)", job, out.TaskStatus)
		default:
			jr.Status = "noop"
			logf("%s: already there", job)
		}
		res.Jobs = append(res.Jobs, jr)
	}

	res.Duration = time.Since(start)
	return res
}

// Summary counts job outcomes across results.
type Summary struct {
	Done, Noop, Failed int
}

// Summarize counts job outcomes across results.
func Summarize(results []OperatorResult) Summary {
	var s Summary
	for _, r := range results {
		for _, j := range r.Jobs {
			switch j.Status {
			case "done":
				s.Done++
			case "noop":
				s.Noop++
			default:
				s.Failed++
			}
		}
	}
	return s
}
