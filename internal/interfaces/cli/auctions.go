package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"gavel.live/cli/internal/application/ports"
	"gavel.live/cli/internal/core/auction"
	"gavel.live/cli/internal/interfaces/di"
)

// newAuctionsCommand creates the auctions subcommand
func newAuctionsCommand(container *di.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auctions",
		Short: "List and manage auctions",
		Long:  `List auctions, inspect a single auction, or create, open, and close your own listings.`,
	}

	cmd.AddCommand(newAuctionsListCommand(container))
	cmd.AddCommand(newAuctionsShowCommand(container))
	cmd.AddCommand(newAuctionsCreateCommand(container))
	cmd.AddCommand(newAuctionsOpenCommand(container))
	cmd.AddCommand(newAuctionsCloseCommand(container))

	return cmd
}

// newAuctionsListCommand creates the auctions list subcommand
func newAuctionsListCommand(container *di.Container) *cobra.Command {
	var openOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all auctions",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			auctions, err := container.Gateway.ListAuctions(ctx)
			if err != nil {
				return fmt.Errorf("failed to list auctions: %w", err)
			}

			if openOnly {
				filtered := auctions[:0]
				for _, a := range auctions {
					if a.IsOpen() {
						filtered = append(filtered, a)
					}
				}
				auctions = filtered
			}

			if len(auctions) == 0 {
				fmt.Println("No auctions found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tITEM\tSTATUS\tCURRENT BID\tBIDS")
			for _, a := range auctions {
				fmt.Fprintf(w, "%s\t%s\t%s\t$%.2f\t%d\n", a.ID, a.Title, a.Status, a.CurrentBid, a.TotalBids)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&openOnly, "open", false, "Show only open auctions")

	return cmd
}

// newAuctionsShowCommand creates the auctions show subcommand
func newAuctionsShowCommand(container *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show <auction-id>",
		Short: "Show one auction in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			a, err := container.Gateway.GetAuction(ctx, args[0])
			if err != nil {
				return fmt.Errorf("failed to fetch auction: %w", err)
			}

			printAuction(a)

			bids, err := container.Gateway.ListBids(ctx, a.ID)
			if err != nil {
				fmt.Printf("\n(bid history unavailable: %v)\n", err)
				return nil
			}
			if len(bids) > 0 {
				fmt.Printf("\nBid history:\n")
				for _, b := range bids {
					fmt.Printf("  $%.2f by %s at %s\n", b.Amount, b.BidderID, b.PlacedAt)
				}
			}
			return nil
		},
	}
}

func printAuction(a *auction.Auction) {
	fmt.Printf("🔨 %s\n", a.Title)
	fmt.Printf("   ID:          %s\n", a.ID)
	fmt.Printf("   Status:      %s\n", a.Status)
	fmt.Printf("   Current bid: $%.2f (%d bids)\n", a.CurrentBid, a.TotalBids)
	fmt.Printf("   Starting at: $%.2f\n", a.StartingPrice)
	if a.ItemDescription != "" {
		fmt.Printf("   Description: %s\n", a.ItemDescription)
	}
	if a.Category != "" {
		fmt.Printf("   Category:    %s\n", a.Category)
	}
	if a.Condition != "" {
		fmt.Printf("   Condition:   %s\n", a.Condition)
	}
	if a.EndTime != "" {
		fmt.Printf("   Ends:        %s\n", a.EndTime)
	}
	if a.WinnerID != "" {
		fmt.Printf("   Winner:      %s\n", a.WinnerID)
	}
}

// newAuctionsCreateCommand creates the auctions create subcommand
func newAuctionsCreateCommand(container *di.Container) *cobra.Command {
	var req ports.CreateAuctionRequest
	var open bool

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new auction listing",
		Example: `  gavel auctions create --name "Antique clock" --price 50
  gavel auctions create --name "Vinyl record" --price 10 --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if req.ItemName == "" {
				return fmt.Errorf("item name is required")
			}
			if req.StartingPrice <= 0 {
				return fmt.Errorf("starting price must be positive")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			a, err := container.Gateway.CreateAuction(ctx, req)
			if err != nil {
				return fmt.Errorf("failed to create auction: %w", err)
			}

			fmt.Printf("✅ Created auction %s (%s)\n", a.ID, a.Title)

			if open {
				if err := container.Gateway.OpenAuction(ctx, a.ID); err != nil {
					return fmt.Errorf("created but failed to open: %w", err)
				}
				fmt.Printf("✅ Auction is open for bidding\n")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ItemName, "name", "", "Item name")
	cmd.Flags().StringVar(&req.ItemDescription, "description", "", "Item description")
	cmd.Flags().Float64Var(&req.StartingPrice, "price", 0, "Starting price")
	cmd.Flags().StringVar(&req.ImageURLs, "images", "", "Comma separated image URLs")
	cmd.Flags().StringVar(&req.Category, "category", "", "Item category")
	cmd.Flags().StringVar(&req.Condition, "condition", "", "Item condition")
	cmd.Flags().StringVar(&req.EndTime, "end-time", "", "Auction end time (RFC 3339)")
	cmd.Flags().BoolVar(&open, "open", false, "Open the auction immediately after creating it")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("price")

	return cmd
}

// newAuctionsOpenCommand creates the auctions open subcommand
func newAuctionsOpenCommand(container *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "open <auction-id>",
		Short: "Open a draft auction for bidding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := container.Gateway.OpenAuction(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to open auction: %w", err)
			}
			fmt.Printf("✅ Auction %s is open for bidding\n", args[0])
			return nil
		},
	}
}

// newAuctionsCloseCommand creates the auctions close subcommand
func newAuctionsCloseCommand(container *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "close <auction-id>",
		Short: "Close an open auction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if err := container.Gateway.CloseAuction(ctx, args[0]); err != nil {
				return fmt.Errorf("failed to close auction: %w", err)
			}
			fmt.Printf("✅ Auction %s closed\n", args[0])
			return nil
		},
	}
}
