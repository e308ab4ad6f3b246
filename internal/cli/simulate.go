package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/production"
	"github.com/imkarma/shopfloor/internal/worker"
)

var (
	simWorkers int
	simFinish  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate [task...]",
	Short: "Work open tasks with concurrent operators",
	Long: `Runs one operator per stage, in parallel, each with its own connection
identity. Every operator starts and finishes its stage on each given task (all
open tasks when none are named). With --finish the final stages are completed
afterwards, booking output and consuming components.

Operators on the same task race on the same document; each write either
commits in full or is retried against the newer revision.`,
	RunE: runSimulate,
}

func init() {
	simulateCmd.Flags().IntVarP(&simWorkers, "workers", "w", 4, "Maximum operators running at once")
	simulateCmd.Flags().BoolVar(&simFinish, "finish", false, "Complete final stages after the other stages")
}

// planJobs gives every unfinished non-final stage to the operator of that
// stage; final stages go to a separate list.
func planJobs(b production.Board, refs []string) (ops []worker.Operator, final []worker.Job, err error) {
	type target struct {
		no         string
		task       production.Task
		finalStage production.StageKey
	}
	var targets []target
	if len(refs) == 0 {
		for _, o := range b.Orders {
			if o.Open() {
				targets = append(targets, target{o.No, o.Task, o.FinalStage()})
			}
		}
		for _, wo := range b.WorkOrders {
			if wo.Open() {
				targets = append(targets, target{wo.No, wo.Task, wo.FinalStage()})
			}
		}
	}
	for _, ref := range refs {
		v, err := b.FindTask(ref)
		if err != nil {
			return nil, nil, err
		}
		if v.Order != nil {
			targets = append(targets, target{v.Order.No, v.Order.Task, v.Order.FinalStage()})
		} else {
			targets = append(targets, target{v.WorkOrder.No, v.WorkOrder.Task, v.WorkOrder.FinalStage()})
		}
	}

	byStage := map[production.StageKey][]worker.Job{}
	for _, t := range targets {
		for _, k := range t.task.StageKeys() {
			status := t.task.Stages[k].Status
			if status == production.StatusReady {
				continue
			}
			if k == t.finalStage {
				final = append(final, worker.Job{TaskRef: t.no, Stage: k, To: production.StatusReady})
				continue
			}
			if status == production.StatusWaiting {
				byStage[k] = append(byStage[k], worker.Job{TaskRef: t.no, Stage: k, To: production.StatusInProgress})
			}
			byStage[k] = append(byStage[k], worker.Job{TaskRef: t.no, Stage: k, To: production.StatusReady})
		}
	}
	for _, k := range production.StageOrder {
		if jobs := byStage[k]; len(jobs) > 0 {
			ops = append(ops, worker.Operator{Name: "op-" + strings.ReplaceAll(string(k), "_", "-"), Jobs: jobs})
		}
	}
	return ops, final, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := mustApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.svc.Board(ctx)
	if err != nil {
		return err
	}
	ops, final, err := planJobs(b, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(ops) == 0 && (!simFinish || len(final) == 0) {
		fmt.Fprintln(out, dimStyle.Render("Nothing to do."))
		return nil
	}

	pool := worker.NewPool(worker.PoolConfig{
		MaxWorkers: simWorkers,
		NewOperator: func(name string) worker.Transitioner {
			// Empty origin: each operator engine gets a random one.
			return newService(a, newEngine(a, name, ""), name)
		},
		Log: a.log.WithField("command", "simulate"),
	})

	results := pool.Run(ctx, ops)
	if simFinish && len(final) > 0 {
		results = append(results, pool.Run(ctx, []worker.Operator{{Name: "assembler", Jobs: final}})...)
	}

	for _, r := range results {
		style := okStyle
		switch r.Status {
		case "failed":
			style = errorStyle
		case "idle":
			style = dimStyle
		}
		fmt.Fprintf(out, "%s %s %s\n", style.Render(r.Operator), dimStyle.Render(r.Duration.Round(time.Millisecond).String()), r.Status)
		for _, j := range r.Jobs {
			switch j.Status {
			case "failed":
				fmt.Fprintf(out, "  %s %s: %v\n", errorStyle.Render("✗"), j.Job, j.Error)
			case "noop":
				fmt.Fprintf(out, "  %s %s\n", dimStyle.Render("="), j.Job)
			default:
				fmt.Fprintf(out, "  %s %s\n", okStyle.Render("✓"), j.Job)
			}
			printNotices(out, production.Warnings(j.Notices))
		}
	}

	sum := worker.Summarize(results)
	fmt.Fprintf(out, "\n%s  %s  %s\n",
		okStyle.Render(fmt.Sprintf("%d done", sum.Done)),
		dimStyle.Render(fmt.Sprintf("%d unchanged", sum.Noop)),
		errorStyle.Render(fmt.Sprintf("%d failed", sum.Failed)))
	if sum.Failed > 0 {
		return fmt.Errorf("%d jobs failed", sum.Failed)
	}
	return nil
}
