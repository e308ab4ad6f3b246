package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/production"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Quick status overview",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
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
	if len(b.Orders) == 0 && len(b.WorkOrders) == 0 && len(b.Inventory.Products) == 0 {
		fmt.Fprintf(out, "Nothing yet. Run: %s\n", cyanStyle.Render("shopfloor product add --help"))
		return nil
	}

	orders := map[production.TaskStatus]int{}
	cancelled := 0
	for _, o := range b.Orders {
		if o.Cancelled {
			cancelled++
			continue
		}
		orders[o.Status]++
	}
	wos := map[production.TaskStatus]int{}
	for _, wo := range b.WorkOrders {
		wos[wo.Status]++
	}

	fmt.Fprintln(out, boldStyle.Render(fmt.Sprintf("Orders: %d total", len(b.Orders))))
	fmt.Fprintf(out, "  %-14s %s\n", "pending:", subtleStyle.Render(fmt.Sprint(orders[production.TaskPending])))
	fmt.Fprintf(out, "  %-14s %s\n", "in_progress:", busyStyle.Render(fmt.Sprint(orders[production.TaskInProgress])))
	fmt.Fprintf(out, "  %-14s %s\n", "done:", okStyle.Render(fmt.Sprint(orders[production.TaskDone])))
	fmt.Fprintf(out, "  %-14s %s\n", "cancelled:", dimStyle.Render(fmt.Sprint(cancelled)))

	fmt.Fprintln(out, boldStyle.Render(fmt.Sprintf("Work orders: %d total", len(b.WorkOrders))))
	fmt.Fprintf(out, "  %-14s %s\n", "pending:", subtleStyle.Render(fmt.Sprint(wos[production.TaskPending])))
	fmt.Fprintf(out, "  %-14s %s\n", "in_progress:", busyStyle.Render(fmt.Sprint(wos[production.TaskInProgress])))
	fmt.Fprintf(out, "  %-14s %s\n", "done:", okStyle.Render(fmt.Sprint(wos[production.TaskDone])))

	var low []string
	for _, line := range b.Stock() {
		switch {
		case line.Available.IsNegative():
			low = append(low, fmt.Sprintf("%s available %s", line.Product.SKU, line.Available))
		case line.Product.BelowMinimum():
			low = append(low, fmt.Sprintf("%s on hand %s, minimum %s", line.Product.SKU, line.OnHand, line.Product.Minimum))
		}
	}
	if len(low) > 0 {
		fmt.Fprintf(out, "\n%s\n", errorStyle.Render("⚠  Stock needs attention"))
		for _, l := range low {
			fmt.Fprintf(out, "  %s\n", warnStyle.Render(l))
		}
	}
	return nil
}
