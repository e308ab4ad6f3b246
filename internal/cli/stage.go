package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/production"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Move production stages",
}

var stageSetCmd = &cobra.Command{
	Use:   "set [task] [stage] [status]",
	Short: "Move a stage to waiting, in_progress or ready",
	Long: `Moves one stage of an order or work order. Inventory follows in the same
write: a work order's final stage books its output, a customer order's
assembly consumes its components. Moving back from ready undoes that.

  shopfloor stage set CO-2603-001 winding in_progress
  shopfloor stage set RT-2603-002 winding ready`,
	Args: cobra.ExactArgs(3),
	RunE: runStageSet,
}

var stageDueCmd = &cobra.Command{
	Use:   "due [task] [stage] [YYYY-MM-DD|none]",
	Short: "Set or clear the due date of a stage",
	Args:  cobra.ExactArgs(3),
	RunE:  runStageDue,
}

func init() {
	stageCmd.AddCommand(stageSetCmd)
	stageCmd.AddCommand(stageDueCmd)
}

// normalizeStage accepts "in progress", "in-progress" and "in_progress".
func normalizeStage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(s)
}

func runStageSet(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	stage := production.StageKey(normalizeStage(args[1]))
	to := production.StageStatus(normalizeStage(args[2]))

	res, err := a.svc.Transition(cmd.Context(), args[0], stage, to)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if !res.Committed {
		fmt.Fprintf(out, "%s %s already %s\n", res.TaskNo, stage, to)
		return nil
	}
	fmt.Fprintf(out, "%s %s %s %s  (task %s)\n",
		stageGlyph(res.Status), titleStyle.Render(res.TaskNo), stageLabel(res.Stage),
		res.Status, taskStatusStyle(res.TaskStatus).Render(string(res.TaskStatus)))
	printNotices(out, res.Notices)
	for _, wo := range res.Spawned {
		fmt.Fprintf(out, "  %s work order %s opened\n", cyanStyle.Render("+"), wo.No)
	}
	return nil
}

func runStageDue(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	raw := args[2]
	if strings.EqualFold(raw, "none") {
		raw = ""
	}
	due, err := parseDate(raw)
	if err != nil {
		return err
	}

	stage := production.StageKey(normalizeStage(args[1]))
	changed, err := a.svc.SetStageDueDate(cmd.Context(), args[0], stage, due)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintln(out, "Due date unchanged")
		return nil
	}
	fmt.Fprintf(out, "%s %s due %s\n", args[0], stageLabel(stage), formatDate(due))
	return nil
}

// printStages lists a task's stages in routing order.
func printStages(w io.Writer, t production.Task) {
	for _, k := range t.StageKeys() {
		r := t.Stages[k]
		line := fmt.Sprintf("  %s %-22s %s", stageGlyph(r.Status), stageLabel(k), r.Status)
		if r.AssignedUser != "" {
			line += dimStyle.Render("  @" + r.AssignedUser)
		}
		if r.DueDate != nil {
			line += dimStyle.Render("  due " + formatDate(r.DueDate))
		}
		fmt.Fprintln(w, line)
	}
}
