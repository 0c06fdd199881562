package ports

import (
	"context"

	"gavel.live/cli/internal/core/auction"
)

// AuctionGateway is the request/response client for the auction service
// behind the gateway. The stream core depends only on ListAuctions being
// callable after an auction-opened event.
type AuctionGateway interface {
	// ListAuctions fetches the full auction collection.
	ListAuctions(ctx context.Context) ([]auction.Auction, error)

	// GetAuction fetches one auction by id.
	GetAuction(ctx context.Context, id string) (*auction.Auction, error)

	// CreateAuction creates a draft auction.
	CreateAuction(ctx context.Context, req CreateAuctionRequest) (*auction.Auction, error)

	// OpenAuction opens a draft auction for bidding.
	OpenAuction(ctx context.Context, id string) error

	// CloseAuction closes an open auction.
	CloseAuction(ctx context.Context, id string) error
}

// CreateAuctionRequest is the payload for creating an auction.
type CreateAuctionRequest struct {
	ItemName        string  `json:"itemName"`
	ItemDescription string  `json:"itemDescription"`
	StartingPrice   float64 `json:"startingPrice"`
	ImageURLs       string  `json:"imageUrls,omitempty"`
	Category        string  `json:"category,omitempty"`
	Condition       string  `json:"condition,omitempty"`
	EndTime         string  `json:"endTime,omitempty"`
}

// BidGateway is the client for the CQRS bid write/read services.
type BidGateway interface {
	// PlaceBid submits a bid on an auction.
	PlaceBid(ctx context.Context, auctionID string, amount float64) (*BidResult, error)

	// ListBids returns the bid history for an auction.
	ListBids(ctx context.Context, auctionID string) ([]Bid, error)
}

// BidResult is the bid service's acknowledgement.
type BidResult struct {
	BidID     string  `json:"bidId"`
	AuctionID string  `json:"auctionId"`
	Amount    float64 `json:"amount"`
	Accepted  bool    `json:"accepted"`
	Message   string  `json:"message,omitempty"`
}

// Bid is one entry in an auction's bid history.
type Bid struct {
	BidID     string  `json:"bidId"`
	AuctionID string  `json:"auctionId"`
	BidderID  string  `json:"bidderId"`
	Amount    float64 `json:"amount"`
	PlacedAt  string  `json:"placedAt"`
}

// PaymentGateway is the client for the payment service.
type PaymentGateway interface {
	// CreatePaymentIntent starts payment for a won auction.
	CreatePaymentIntent(ctx context.Context, auctionID string) (*PaymentIntent, error)

	// ConfirmPayment confirms a previously created intent.
	ConfirmPayment(ctx context.Context, intentID string) error
}

// PaymentIntent is the payment service's pending-payment handle.
type PaymentIntent struct {
	IntentID  string  `json:"intentId"`
	AuctionID string  `json:"auctionId"`
	Amount    float64 `json:"amount"`
	Status    string  `json:"status"`
	Deadline  string  `json:"deadline,omitempty"`
}

// IdentityGateway supplies the current session's credential pair on demand.
// It fails when no authenticated session exists.
type IdentityGateway interface {
	// Tokens returns the current bearer and identity tokens.
	Tokens(ctx context.Context) (*TokenPair, error)

	// Username returns the locally authenticated username, used to match
	// targeted stream events.
	Username() (string, error)

	// StreamToken returns the credential embedded in the stream URL.
	StreamToken(ctx context.Context) (string, error)
}

// TokenPair is the credential pair issued by the identity service.
type TokenPair struct {
	BearerToken string `json:"bearerToken"`
	IDToken     string `json:"idToken"`
}
