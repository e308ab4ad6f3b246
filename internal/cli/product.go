package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/inventory"
	"github.com/imkarma/shopfloor/internal/production"
	"github.com/imkarma/shopfloor/internal/txn"
)

var (
	productSKU      string
	productName     string
	productKind     string
	productCategory string
	productUnit     string
	productQty      string
	productMin      string
	productCost     string
	productNote     string
	productAttrs    attrValues
)

// attrValues are the variant attributes shared by product, recipe and order flags.
type attrValues struct {
	kw             string
	rpm            string
	volt           string
	shaftCode      string
	cover          string
	terminalSide   string
	mountingHole   string
	connectionType string
}

func (v attrValues) asMap() map[string]string {
	return map[string]string{
		inventory.AttrKW:             v.kw,
		inventory.AttrRPM:            v.rpm,
		inventory.AttrVolt:           v.volt,
		inventory.AttrShaftCode:      v.shaftCode,
		inventory.AttrCover:          v.cover,
		inventory.AttrTerminalSide:   v.terminalSide,
		inventory.AttrMountingHole:   v.mountingHole,
		inventory.AttrConnectionType: v.connectionType,
	}
}

func addAttrFlags(cmd *cobra.Command, v *attrValues) {
	cmd.Flags().StringVar(&v.kw, "kw", "", "Power in kW (\"5,5\" and \"5.5\" both accepted)")
	cmd.Flags().StringVar(&v.rpm, "rpm", "", "Speed in rpm")
	cmd.Flags().StringVar(&v.volt, "volt", "", "Voltage")
	cmd.Flags().StringVar(&v.shaftCode, "shaft-code", "", "Shaft drawing code")
	cmd.Flags().StringVar(&v.cover, "cover", "", "Cover type")
	cmd.Flags().StringVar(&v.terminalSide, "terminal-side", "", "Terminal box side")
	cmd.Flags().StringVar(&v.mountingHole, "mounting-hole", "", "Mounting hole layout")
	cmd.Flags().StringVar(&v.connectionType, "connection", "", "Connection type")
}

var productCmd = &cobra.Command{
	Use:   "product",
	Short: "Manage the product catalog and stock",
}

var productAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add or update a product",
	Long:  "Adds a product, or updates the one with the same SKU. The quantity of a new product is booked as its opening balance.",
	RunE:  runProductAdd,
}

var productListCmd = &cobra.Command{
	Use:   "list [category]",
	Short: "List products, optionally filtered by category",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProductList,
}

var productAdjustCmd = &cobra.Command{
	Use:   "adjust [sku] [in|out] [amount]",
	Short: "Book a manual stock movement",
	Args:  cobra.ExactArgs(3),
	RunE:  runProductAdjust,
}

var productHistoryCmd = &cobra.Command{
	Use:   "history [sku]",
	Short: "Show the movement history of a product",
	Args:  cobra.ExactArgs(1),
	RunE:  runProductHistory,
}

func init() {
	productAddCmd.Flags().StringVar(&productSKU, "sku", "", "Stock keeping unit (required)")
	productAddCmd.Flags().StringVar(&productName, "name", "", "Product name (required)")
	productAddCmd.Flags().StringVar(&productKind, "kind", "semi", "Kind: raw, semi, finished")
	productAddCmd.Flags().StringVar(&productCategory, "category", "", "Category (required), e.g. wound_package")
	productAddCmd.Flags().StringVar(&productUnit, "unit", "pcs", "Unit of measure")
	productAddCmd.Flags().StringVar(&productQty, "qty", "0", "Opening quantity")
	productAddCmd.Flags().StringVar(&productMin, "min", "", "Minimum stock that triggers replenishment")
	productAddCmd.Flags().StringVar(&productCost, "cost", "", "Unit cost")
	addAttrFlags(productAddCmd, &productAttrs)
	productAddCmd.MarkFlagRequired("sku")
	productAddCmd.MarkFlagRequired("name")
	productAddCmd.MarkFlagRequired("category")

	productAdjustCmd.Flags().StringVarP(&productNote, "note", "n", "", "Reason for the movement")

	productCmd.AddCommand(productAddCmd)
	productCmd.AddCommand(productListCmd)
	productCmd.AddCommand(productAdjustCmd)
	productCmd.AddCommand(productHistoryCmd)
}

func optionalDecimal(flag, s string) (*decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := inventory.ParseQuantity(s)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &d, nil
}

func runProductAdd(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	category := inventory.Category(strings.ToLower(productCategory))
	qty, err := inventory.ParseQuantity(productQty)
	if err != nil {
		return fmt.Errorf("--qty: %w", err)
	}
	minimum, err := optionalDecimal("min", productMin)
	if err != nil {
		return err
	}
	cost, err := optionalDecimal("cost", productCost)
	if err != nil {
		return err
	}
	attrs, err := inventory.BuildVariant(category, productAttrs.asMap())
	if err != nil {
		return err
	}

	p := inventory.Product{
		SKU:      productSKU,
		Name:     productName,
		Kind:     inventory.Kind(productKind),
		Category: category,
		Unit:     productUnit,
		Quantity: qty,
		Minimum:  minimum,
		UnitCost: cost,
		Attrs:    attrs,
	}
	saved, err := a.svc.UpsertProduct(cmd.Context(), p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %s %s [%s/%s] on hand %s %s\n",
		saved.SKU, saved.Name, saved.Kind, saved.Category, saved.Quantity, saved.Unit)
	return nil
}

func runProductList(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	b, err := a.svc.Board(cmd.Context())
	if err != nil {
		return err
	}

	filter := ""
	if len(args) == 1 {
		filter = strings.ToLower(args[0])
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SKU\tNAME\tKIND\tCATEGORY\tON HAND\tCOMMITTED\tAVAILABLE\tMIN")
	n := 0
	for _, line := range b.Stock() {
		p := line.Product
		if filter != "" && string(p.Category) != filter {
			continue
		}
		n++
		min := "-"
		if p.Minimum != nil {
			min = p.Minimum.String()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.SKU, truncate(p.Name, 28), p.Kind, p.Category,
			line.OnHand, line.Committed, line.Available, min)
	}
	w.Flush()
	if n == 0 {
		fmt.Fprintln(out, dimStyle.Render("No products. Run: shopfloor product add --help"))
	}
	return nil
}

func runProductAdjust(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	amount, err := inventory.ParsePositive(args[2])
	if err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}

	res, err := a.svc.AdjustStock(cmd.Context(), args[0], inventory.Direction(strings.ToLower(args[1])), amount, productNote)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	m := res.Movement
	fmt.Fprintf(out, "%s %s %s: %s -> %s\n", args[0], m.Direction, m.Amount, m.QuantityBefore, m.QuantityAfter)
	printNotices(out, res.Notices)
	return nil
}

func runProductHistory(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	book, err := txn.Get(cmd.Context(), a.engine, production.Inventory)
	if err != nil {
		return err
	}
	p, ok := book.Lookup(args[0])
	if !ok {
		return fmt.Errorf("unknown product %q", args[0])
	}

	out := cmd.OutOrStdout()
	history := book.History(p.ID)
	if len(history) == 0 {
		fmt.Fprintf(out, "No movements for %s\n", p.SKU)
		return nil
	}

	fmt.Fprintf(out, "Movements for %s:\n\n", p.SKU)
	for _, m := range history {
		mark := "+"
		if m.Direction == inventory.Out {
			mark = "-"
		}
		line := fmt.Sprintf("  %s  %-8s %s%-8s %8s  %s", m.Timestamp.Local().Format("2006-01-02 15:04"),
			m.User, mark, m.Amount, m.QuantityAfter, m.Note)
		if m.Shortage {
			line = warnStyle.Render(line)
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
