package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/yeremiapane/restaurant-core/services"
	"github.com/yeremiapane/restaurant-core/utils"
)

var costQuantity string

var costCmd = &cobra.Command{
	Use:   "cost <item_id>",
	Short: "Print the rolled-up recipe cost and ingredient explosion of a sellable item",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid item id %q", args[0])
		}
		qty, err := parseQuantity(costQuantity)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		svc := services.NewCostService(db, cfg.Engine.MaxRecipeDepth)
		ctx := context.Background()

		report, err := svc.ItemCost(ctx, uint(id))
		if err != nil {
			return err
		}
		ex, err := svc.Explode(ctx, uint(id), qty)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", report.ItemName)
		fmt.Fprintf(out, "  price:      %s\n", utils.FormatMoney(report.Price))
		fmt.Fprintf(out, "  unit cost:  %s\n", utils.FormatMoney(report.Cost))
		fmt.Fprintf(out, "  margin:     %s%%\n", report.MarginPct.StringFixed(1))
		fmt.Fprintf(out, "Ingredients for %s:\n", qty.String())
		for _, d := range ex.Deductions {
			fmt.Fprintf(out, "  %-24s %s %s\n", d.IngredientName, d.Quantity.String(), d.Unit)
		}
		for _, n := range report.Notes {
			fmt.Fprintf(out, "  [note] %s\n", n.Message)
		}
		return nil
	},
}

func init() {
	costCmd.Flags().StringVarP(&costQuantity, "quantity", "q", "1", "Quantity to explode")
	rootCmd.AddCommand(costCmd)
}

func parseQuantity(raw string) (decimal.Decimal, error) {
	qty, err := decimal.NewFromString(raw)
	if err != nil || !qty.IsPositive() {
		return decimal.Zero, fmt.Errorf("quantity must be a positive number, got %q", raw)
	}
	return qty, nil
}
