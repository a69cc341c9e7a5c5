package main

import (
	"fmt"

	"github.com/boddenberg/telecom-support-go/internal/domain"
	"github.com/boddenberg/telecom-support-go/internal/infra/seed"
	"github.com/boddenberg/telecom-support-go/internal/pricing"

	"github.com/spf13/cobra"
)

var priceCmd = &cobra.Command{
	Use:   "price <customerID>",
	Short: "Show a customer's charge breakdown",
	Long: `Computes the monthly charges of a seeded customer. With --toggle the effect of
adding or removing an add-on is previewed without changing anything.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		customers, err := seed.LoadFile(cfg.CustomersSeedFile)
		if err != nil {
			return err
		}

		var customer *domain.CustomerRecord
		for i := range customers {
			if customers[i].CustomerID == args[0] {
				customer = &customers[i]
				break
			}
		}
		if customer == nil {
			return &domain.ErrNotFound{Resource: "customer", ID: args[0]}
		}

		w := cmd.OutOrStdout()
		charges := pricing.Compute(*customer)
		fmt.Fprintf(w, "Customer %s (tenure %d months)\n", customer.CustomerID, customer.Tenure)
		for _, line := range charges.Breakdown {
			fmt.Fprintf(w, "  %s\n", line)
		}
		fmt.Fprintf(w, "  Total: $%.2f/month\n", pricing.Round2(charges.Total))

		toggle, _ := cmd.Flags().GetString("toggle")
		if toggle == "" {
			return nil
		}
		addon, ok := domain.ParseAddon(toggle)
		if !ok {
			return &domain.ErrValidation{Field: "toggle", Message: "unknown add-on " + toggle}
		}
		value := domain.Yes
		if customer.Addon(addon) == domain.Yes {
			value = domain.No
		}
		preview := pricing.DiffOnToggle(*customer, addon, value)
		fmt.Fprintf(w, "Setting %s to %s: $%.2f -> $%.2f (%+.2f, %+.2f%%)\n",
			pricing.Label(addon), value, preview.OldTotal, preview.NewTotal, preview.Difference, preview.PercentageChange)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(priceCmd)
	priceCmd.Flags().String("toggle", "", "Add-on to flip for a cost preview, e.g. StreamingTV")
}
