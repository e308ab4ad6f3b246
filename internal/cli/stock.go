package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var stockShort bool

var stockCmd = &cobra.Command{
	Use:   "stock",
	Short: "Show on-hand, committed and available stock",
	Long: `Shows each product's stock position. Committed is what open orders and
work orders will consume at their final stage; available is on hand minus
committed and may be negative.`,
	RunE: runStock,
}

func init() {
	stockCmd.Flags().BoolVar(&stockShort, "short", false, "Only products with negative availability or below minimum")
}

func runStock(cmd *cobra.Command, args []string) error {
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
	fmt.Fprintln(w, "SKU\tON HAND\tCOMMITTED\tAVAILABLE\tUNIT\t")
	for _, line := range b.Stock() {
		short := line.Available.IsNegative() || line.Product.BelowMinimum()
		if stockShort && !short {
			continue
		}
		flag := ""
		switch {
		case line.Available.IsNegative():
			flag = "short"
		case line.Product.BelowMinimum():
			flag = "below min"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			line.Product.SKU, line.OnHand, line.Committed, line.Available, line.Product.Unit, flag)
	}
	return w.Flush()
}
