package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"gavel.live/cli/internal/interfaces/di"
)

// newPayCommand creates the pay subcommand
func newPayCommand(container *di.Container) *cobra.Command {
	var confirm bool

	cmd := &cobra.Command{
		Use:   "pay <auction-id>",
		Short: "Pay for a won auction",
		Long:  `Create a payment intent for an auction you won. With --confirm the intent is confirmed immediately, completing the payment.`,
		Example: `  gavel pay a1
  gavel pay a1 --confirm`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			intent, err := container.Gateway.CreatePaymentIntent(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to create payment intent: %w", err)
			}

			fmt.Printf("💳 Payment intent %s for $%.2f (status: %s)\n", intent.IntentID, intent.Amount, intent.Status)
			if intent.Deadline != "" {
				fmt.Printf("   Pay before: %s\n", intent.Deadline)
			}

			if !confirm {
				fmt.Printf("   Run 'gavel pay %s --confirm' to complete the payment\n", args[0])
				return nil
			}

			if err := container.Gateway.ConfirmPayment(ctx, intent.IntentID); err != nil {
				return fmt.Errorf("failed to confirm payment: %w", err)
			}
			fmt.Printf("✅ Payment confirmed\n")
			return nil
		},
	}

	cmd.Flags().BoolVar(&confirm, "confirm", false, "Confirm the payment intent immediately")

	return cmd
}
