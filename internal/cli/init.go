package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/imkarma/shopfloor/internal/config"
	"github.com/imkarma/shopfloor/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize shopfloor in the current directory",
	Long:  "Creates a .shopfloor/ directory with default config and database.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := workspacePath()

	// Check if already initialized.
	if _, err := os.Stat(dir); err == nil {
		return fmt.Errorf("shopfloor already initialized in this directory (%s exists)", dir)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	// Write default config.
	cfg := config.DefaultConfig()
	cfg.User = flagUser
	if err := config.Save(workspacePath("config.yaml"), cfg); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	// Create database by opening store (migration runs automatically).
	s, err := store.Open(workspacePath(cfg.Store.Path))
	if err != nil {
		return fmt.Errorf("create database: %w", err)
	}
	s.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Initialized shopfloor in %s\n", dir)
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Next steps:")
	fmt.Fprintln(out, "  1. Add products:  shopfloor product add --sku WP-55 --name \"Wound package 5.5kW\" --kind semi --category wound_package --kw 5.5 --min 4")
	fmt.Fprintln(out, "  2. Add recipes:   shopfloor recipe add --name \"5.5kW motor\" --kw 5.5 --component WP-55=1")
	fmt.Fprintln(out, "  3. Take an order: shopfloor order create --customer acme --qty 2 --kw 5.5")
	fmt.Fprintln(out, "  4. Run: shopfloor board")

	return nil
}
