package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/store"
)

var logLimit int

var logCmd = &cobra.Command{
	Use:   "log [task-no]",
	Short: "Show the event log for a task, or recent events",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLog,
}

func init() {
	logCmd.Flags().IntVarP(&logLimit, "limit", "n", 30, "Number of recent events when no task is given")
}

func runLog(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	var events []store.Event
	if len(args) == 1 {
		events, err = a.events.GetEvents(args[0])
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintf(out, "No events for %s\n", args[0])
			return nil
		}
		fmt.Fprintf(out, "Events for %s:\n\n", args[0])
	} else {
		events, err = a.events.RecentEvents(logLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(out, "No events yet")
			return nil
		}
	}

	for _, e := range events {
		who := ""
		if e.User != "" {
			who = fmt.Sprintf("[%s] ", e.User)
		}
		task := ""
		if len(args) == 0 && e.TaskNo != "" {
			task = e.TaskNo + " "
		}
		line := fmt.Sprintf("  %s  %s%s%-18s %s", e.Timestamp.Local().Format("2006-01-02 15:04:05"), who, task, e.Type, e.Content)
		if e.Level == "warning" {
			line = warnStyle.Render(line)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
