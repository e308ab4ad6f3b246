package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/production"
)

var (
	orderCustomer string
	orderProduct  string
	orderQty      string
	orderNote     string
	orderDue      string
	orderAll      bool
	orderAttrs    attrValues
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Manage customer orders",
}

var orderCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Open production for a customer order",
	Long: `Opens production for a customer order. Stages covered by stock (or by a
cover that needs no grinding) start out ready.

  shopfloor order create --customer acme --qty 2 --kw 5,5 --cover AK
  shopfloor order create --customer acme --qty 1 --product MTR-55`,
	RunE: runOrderCreate,
}

var orderCancelCmd = &cobra.Command{
	Use:   "cancel [order]",
	Short: "Cancel an order; its stock claim is released",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setCancelled(cmd, args[0], true) },
}

var orderRestoreCmd = &cobra.Command{
	Use:   "restore [order]",
	Short: "Restore a cancelled order",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setCancelled(cmd, args[0], false) },
}

var orderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List customer orders",
	RunE:  runOrderList,
}

func init() {
	orderCreateCmd.Flags().StringVarP(&orderCustomer, "customer", "c", "", "Customer id (required)")
	orderCreateCmd.Flags().StringVarP(&orderProduct, "product", "p", "", "Catalog motor (SKU); blank attributes are taken from it")
	orderCreateCmd.Flags().StringVarP(&orderQty, "qty", "q", "", "Quantity (required)")
	orderCreateCmd.Flags().StringVarP(&orderNote, "note", "n", "", "Free-text note")
	orderCreateCmd.Flags().StringVar(&orderDue, "due", "", "Due date (YYYY-MM-DD)")
	addAttrFlags(orderCreateCmd, &orderAttrs)
	orderCreateCmd.MarkFlagRequired("customer")
	orderCreateCmd.MarkFlagRequired("qty")

	orderListCmd.Flags().BoolVarP(&orderAll, "all", "a", false, "Include done and cancelled orders")

	orderCmd.AddCommand(orderCreateCmd)
	orderCmd.AddCommand(orderCancelCmd)
	orderCmd.AddCommand(orderRestoreCmd)
	orderCmd.AddCommand(orderListCmd)
}

func runOrderCreate(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	due, err := parseDate(orderDue)
	if err != nil {
		return err
	}

	o, err := a.svc.CreateCustomerTask(cmd.Context(), production.OrderInput{
		CustomerID:     orderCustomer,
		Product:        orderProduct,
		Quantity:       orderQty,
		KW:             orderAttrs.kw,
		RPM:            orderAttrs.rpm,
		Volt:           orderAttrs.volt,
		ShaftCode:      orderAttrs.shaftCode,
		Cover:          orderAttrs.cover,
		TerminalSide:   orderAttrs.terminalSide,
		MountingHole:   orderAttrs.mountingHole,
		ConnectionType: orderAttrs.connectionType,
		Note:           orderNote,
		DueDate:        due,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created order %s for %s (qty %s)\n", titleStyle.Render(o.No), o.CustomerID, o.Quantity)
	printStages(out, o.Task)
	return nil
}

func setCancelled(cmd *cobra.Command, ref string, cancel bool) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	changed, err := a.svc.CancelCustomerTask(cmd.Context(), ref, cancel)
	if err != nil {
		return err
	}
	verb := "cancelled"
	if !cancel {
		verb = "restored"
	}
	out := cmd.OutOrStdout()
	if !changed {
		fmt.Fprintf(out, "Order %s already %s\n", ref, verb)
		return nil
	}
	fmt.Fprintf(out, "Order %s %s\n", ref, verb)
	return nil
}

func runOrderList(cmd *cobra.Command, args []string) error {
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
	fmt.Fprintln(w, "NO\tCUSTOMER\tQTY\tKW\tCOVER\tSTATUS\tPROGRESS\tDUE")
	n := 0
	for _, o := range b.Orders {
		if !orderAll && (o.Cancelled || o.Status == production.TaskDone) {
			continue
		}
		n++
		kw := "-"
		if o.Spec.KW != nil {
			kw = o.Spec.KW.String()
		}
		status := string(o.Status)
		if o.Cancelled {
			status = "cancelled"
		}
		ready, total := o.Progress()
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d/%d\t%s\n",
			o.No, truncate(o.CustomerID, 20), o.Quantity, kw, o.Spec.Cover, status, ready, total, formatDate(o.DueDate))
	}
	w.Flush()
	if n == 0 {
		fmt.Fprintln(out, dimStyle.Render("No open orders."))
	}
	return nil
}
