package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/inventory"
	"github.com/imkarma/shopfloor/internal/production"
)

var (
	woDue string
	woAll bool
)

var workOrderCmd = &cobra.Command{
	Use:     "workorder",
	Aliases: []string{"wo"},
	Short:   "Manage replenishment work orders",
}

var workOrderCreateCmd = &cobra.Command{
	Use:   "create [sku] [qty]",
	Short: "Open a work order to make stock of a semi-finished product",
	Args:  cobra.ExactArgs(2),
	RunE:  runWorkOrderCreate,
}

var workOrderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List work orders",
	RunE:  runWorkOrderList,
}

func init() {
	workOrderCreateCmd.Flags().StringVar(&woDue, "due", "", "Due date (YYYY-MM-DD)")
	workOrderListCmd.Flags().BoolVarP(&woAll, "all", "a", false, "Include done work orders")

	workOrderCmd.AddCommand(workOrderCreateCmd)
	workOrderCmd.AddCommand(workOrderListCmd)
}

func runWorkOrderCreate(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	qty, err := inventory.ParsePositive(args[1])
	if err != nil {
		return fmt.Errorf("invalid quantity: %w", err)
	}
	due, err := parseDate(woDue)
	if err != nil {
		return err
	}

	wo, err := a.svc.CreateReplenishmentTask(cmd.Context(), args[0], qty, due)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created work order %s for %s (qty %s)\n", titleStyle.Render(wo.No), args[0], wo.Quantity)
	printStages(out, wo.Task)
	return nil
}

func runWorkOrderList(cmd *cobra.Command, args []string) error {
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
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NO\tPRODUCT\tQTY\tSTATUS\tPROGRESS\tORIGIN\tDUE")
	n := 0
	for _, wo := range b.WorkOrders {
		if !woAll && wo.Status == production.TaskDone {
			continue
		}
		n++
		sku := wo.ProductID
		if p, ok := b.Inventory.Product(wo.ProductID); ok {
			sku = p.SKU
		}
		origin := "manual"
		if wo.Automatic {
			origin = "auto"
		}
		ready, total := wo.Progress()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			wo.No, sku, wo.Quantity, wo.Status, ready, total, origin, formatDate(wo.DueDate))
	}
	w.Flush()
	if n == 0 {
		fmt.Fprintln(out, dimStyle.Render("No open work orders."))
	}
	return nil
}
