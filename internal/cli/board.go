package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/production"
)

var boardAll bool

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Show orders and work orders by progress",
	RunE:  runBoard,
}

func init() {
	boardCmd.Flags().BoolVarP(&boardAll, "all", "a", false, "Include cancelled orders")
}

// card is one task on the board, whichever kind.
type card struct {
	no        string
	title     string
	task      production.Task
	cancelled bool
}

func boardCards(b production.Board) []card {
	cards := make([]card, 0, len(b.Orders)+len(b.WorkOrders))
	for _, o := range b.Orders {
		if o.Cancelled && !boardAll {
			continue
		}
		title := o.CustomerID
		if o.Spec.KW != nil {
			title += " " + o.Spec.KW.String() + "kW"
		}
		cards = append(cards, card{no: o.No, title: title, task: o.Task, cancelled: o.Cancelled})
	}
	for _, wo := range b.WorkOrders {
		title := wo.ProductID
		if p, ok := b.Inventory.Product(wo.ProductID); ok {
			title = p.SKU
		}
		if wo.Automatic {
			title += " (auto)"
		}
		cards = append(cards, card{no: wo.No, title: title, task: wo.Task})
	}
	return cards
}

func (c card) render() string {
	var sb strings.Builder
	header := fmt.Sprintf("%s %s", boldStyle.Render(c.no), truncate(c.title, 20))
	sb.WriteString(header)
	fmt.Fprintf(&sb, "\n%s", dimStyle.Render("qty "+c.task.Quantity.String()))
	if c.task.DueDate != nil {
		sb.WriteString(dimStyle.Render("  due " + formatDate(c.task.DueDate)))
	}
	for _, k := range c.task.StageKeys() {
		r := c.task.Stages[k]
		row := fmt.Sprintf("\n%s %s", stageGlyph(r.Status), stageLabel(k))
		if r.Status == production.StatusInProgress && r.AssignedUser != "" {
			row += " " + cyanStyle.Render("@"+r.AssignedUser)
		}
		sb.WriteString(row)
	}

	style := cardStyle
	switch {
	case c.cancelled:
		style = cardDeadStyle
	case c.task.Status == production.TaskDone:
		style = cardDoneStyle
	case c.task.Status == production.TaskInProgress:
		style = cardBusyStyle
	}
	return style.Render(sb.String())
}

func runBoard(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.svc.Board(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	cards := boardCards(b)
	if len(cards) == 0 {
		fmt.Fprintf(out, "%s Take an order: %s\n",
			dimStyle.Render("Board is empty."), cyanStyle.Render("shopfloor order create --help"))
		return nil
	}

	columns := map[production.TaskStatus][]string{}
	for _, c := range cards {
		columns[c.task.Status] = append(columns[c.task.Status], c.render())
	}

	order := []struct {
		status production.TaskStatus
		label  string
	}{
		{production.TaskPending, "PENDING"},
		{production.TaskInProgress, "IN PROGRESS"},
		{production.TaskDone, "DONE"},
	}

	rendered := make([]string, 0, len(order))
	for _, col := range order {
		items := columns[col.status]
		head := taskStatusStyle(col.status).Bold(true).Render(fmt.Sprintf("%s (%d)", col.label, len(items)))
		rendered = append(rendered, lipgloss.JoinVertical(lipgloss.Left, append([]string{head}, items...)...))
	}
	fmt.Fprintln(out, lipgloss.JoinHorizontal(lipgloss.Top, rendered...))

	fmt.Fprintf(out, "\n%s  rev %d", boldStyle.Render(fmt.Sprintf("%d tasks", len(cards))), b.Revision)
	if n := len(columns[production.TaskDone]); n > 0 {
		fmt.Fprintf(out, "  %s", okStyle.Render(fmt.Sprintf("✓ %d done", n)))
	}
	if n := len(columns[production.TaskInProgress]); n > 0 {
		fmt.Fprintf(out, "  %s", busyStyle.Render(fmt.Sprintf("● %d in progress", n)))
	}
	fmt.Fprintln(out)
	return nil
}
