package cli

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"gavel.live/cli/internal/interfaces/di"
)

// newBidCommand creates the bid subcommand
func newBidCommand(container *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "bid <auction-id> <amount>",
		Short: "Place a bid on an auction",
		Long:  `Place a bid on an open auction. The bid service acknowledges acceptance; the resulting price change arrives over the live event stream.`,
		Example: `  gavel bid a1 150
  gavel bid a1 150.50`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}
			if amount <= 0 {
				return fmt.Errorf("bid amount must be positive")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			result, err := container.Gateway.PlaceBid(ctx, args[0], amount)
			if err != nil {
				return fmt.Errorf("failed to place bid: %w", err)
			}

			if !result.Accepted {
				if result.Message != "" {
					return fmt.Errorf("bid rejected: %s", result.Message)
				}
				return fmt.Errorf("bid rejected")
			}

			fmt.Printf("✅ Bid of $%.2f accepted (bid %s)\n", result.Amount, result.BidID)
			return nil
		},
	}
}
