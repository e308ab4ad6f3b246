package cli

import (
	"github.com/spf13/cobra"
)

var (
	flagUser string
	flagDir  string
)

var rootCmd = &cobra.Command{
	Use:           "shopfloor",
	Short:         "Production tracking for a motor workshop",
	Long:          "shopfloor tracks customer orders and work orders through the production stages\nand keeps inventory in step with every stage change.",
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagUser, "user", "u", "", "Operator name (default: $SHOPFLOOR_USER, then config user)")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", ".", "Directory holding the .shopfloor workspace")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(productCmd)
	rootCmd.AddCommand(recipeCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(workOrderCmd)
	rootCmd.AddCommand(stageCmd)
	rootCmd.AddCommand(boardCmd)
	rootCmd.AddCommand(stockCmd)
	rootCmd.AddCommand(logCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(watchCmd)
}
