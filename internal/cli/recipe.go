package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/bom"
	"github.com/imkarma/shopfloor/internal/inventory"
)

var (
	recipeName       string
	recipeTarget     string
	recipeCustomers  []string
	recipeComponents []string
	recipeAttrs      attrValues
)

var recipeCmd = &cobra.Command{
	Use:   "recipe",
	Short: "Manage bills of materials",
}

var recipeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a recipe",
	Long: `Adds a recipe. Attribute flags restrict which builds it applies to;
--component SKU=QTY is repeated once per line, quantities per unit built.

  shopfloor recipe add --name "5.5kW motor" --kw 5,5 --component WP-55=1 --component BRG-6205=2`,
	RunE: runRecipeAdd,
}

var recipeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recipes",
	RunE:  runRecipeList,
}

func init() {
	recipeAddCmd.Flags().StringVar(&recipeName, "name", "", "Recipe name (required)")
	recipeAddCmd.Flags().StringVar(&recipeTarget, "target", "", "SKU this recipe builds; empty matches by attributes only")
	recipeAddCmd.Flags().StringArrayVar(&recipeCustomers, "customer", nil, "Restrict to a customer (repeatable)")
	recipeAddCmd.Flags().StringArrayVar(&recipeComponents, "component", nil, "Component as SKU=QTY (repeatable, required)")
	addAttrFlags(recipeAddCmd, &recipeAttrs)
	recipeAddCmd.MarkFlagRequired("name")
	recipeAddCmd.MarkFlagRequired("component")

	recipeCmd.AddCommand(recipeAddCmd)
	recipeCmd.AddCommand(recipeListCmd)
}

// parseComponent splits "SKU=QTY".
func parseComponent(s string) (bom.Component, error) {
	sku, qty, ok := strings.Cut(s, "=")
	sku = strings.TrimSpace(sku)
	if !ok || sku == "" {
		return bom.Component{}, fmt.Errorf("component %q: want SKU=QTY", s)
	}
	perUnit, err := inventory.ParsePositive(qty)
	if err != nil {
		return bom.Component{}, fmt.Errorf("component %q: %w", s, err)
	}
	return bom.Component{ProductID: sku, PerUnit: perUnit}, nil
}

// criteriaFrom turns attribute flags into match criteria; nothing set
// matches every build.
func criteriaFrom(v attrValues) (bom.Criteria, error) {
	var c bom.Criteria
	var elec bom.Electrical
	kw, err := optionalDecimal("kw", v.kw)
	if err != nil {
		return c, err
	}
	rpm, err := optionalDecimal("rpm", v.rpm)
	if err != nil {
		return c, err
	}
	volt, err := optionalDecimal("volt", v.volt)
	if err != nil {
		return c, err
	}
	elec.KW, elec.RPM, elec.Volt = kw, rpm, volt
	if kw != nil || rpm != nil || volt != nil {
		c.Electrical = &elec
	}

	c.ShaftCode = strings.TrimSpace(v.shaftCode)
	c.Cover = strings.TrimSpace(v.cover)

	m := bom.Mounting{
		TerminalSide:   strings.TrimSpace(v.terminalSide),
		MountingHole:   strings.TrimSpace(v.mountingHole),
		ConnectionType: strings.TrimSpace(v.connectionType),
	}
	if m != (bom.Mounting{}) {
		c.Mounting = &m
	}
	return c, nil
}

func runRecipeAdd(cmd *cobra.Command, args []string) error {
	a, err := mustApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	match, err := criteriaFrom(recipeAttrs)
	if err != nil {
		return err
	}
	r := bom.Recipe{
		Name:        recipeName,
		TargetSKU:   strings.TrimSpace(recipeTarget),
		CustomerIDs: recipeCustomers,
		Match:       match,
	}
	for _, s := range recipeComponents {
		c, err := parseComponent(s)
		if err != nil {
			return err
		}
		r.Components = append(r.Components, c)
	}

	saved, err := a.svc.UpsertRecipe(cmd.Context(), r)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved recipe %q (%d components)\n", saved.Name, len(saved.Components))
	return nil
}

func runRecipeList(cmd *cobra.Command, args []string) error {
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
	if len(b.Recipes) == 0 {
		fmt.Fprintln(out, dimStyle.Render("No recipes. Run: shopfloor recipe add --help"))
		return nil
	}

	for _, r := range b.Recipes {
		scope := "any customer"
		if !r.Generic() {
			scope = strings.Join(r.CustomerIDs, ", ")
		}
		target := ""
		if r.TargetSKU != "" {
			target = " -> " + r.TargetSKU
		}
		fmt.Fprintf(out, "%s%s  %s\n", boldStyle.Render(r.Name), cyanStyle.Render(target), dimStyle.Render("("+scope+")"))
		if m := describeCriteria(r.Match); m != "" {
			fmt.Fprintf(out, "  match: %s\n", m)
		}
		for _, c := range r.Components {
			label := c.ProductID
			if p, ok := b.Inventory.Product(c.ProductID); ok {
				label = p.SKU
			}
			fmt.Fprintf(out, "  %s x %s\n", c.PerUnit, label)
		}
	}
	return nil
}

func describeCriteria(c bom.Criteria) string {
	var parts []string
	if e := c.Electrical; e != nil {
		if e.KW != nil {
			parts = append(parts, "kw="+e.KW.String())
		}
		if e.RPM != nil {
			parts = append(parts, "rpm="+e.RPM.String())
		}
		if e.Volt != nil {
			parts = append(parts, "volt="+e.Volt.String())
		}
	}
	if c.ShaftCode != "" {
		parts = append(parts, "shaft="+c.ShaftCode)
	}
	if c.Cover != "" {
		parts = append(parts, "cover="+c.Cover)
	}
	if m := c.Mounting; m != nil {
		if m.TerminalSide != "" {
			parts = append(parts, "terminal="+m.TerminalSide)
		}
		if m.MountingHole != "" {
			parts = append(parts, "hole="+m.MountingHole)
		}
		if m.ConnectionType != "" {
			parts = append(parts, "connection="+m.ConnectionType)
		}
	}
	return strings.Join(parts, " ")
}
