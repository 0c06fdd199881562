package auction

// Status represents the lifecycle state of an auction.
type Status string

const (
	StatusDraft  Status = "draft"
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// Auction is the client-side cached record of one auction. Field tags match
// the gateway's wire format: the listing endpoint calls the title `itemName`
// and the live price `currentPrice`. Records are created by a full-list
// fetch, mutated in place by the stream reducer, and only removed by a full
// refetch.
type Auction struct {
	ID              string  `json:"id"`
	Title           string  `json:"itemName"`
	ItemDescription string  `json:"itemDescription"`
	StartingPrice   float64 `json:"startingPrice"`
	CurrentBid      float64 `json:"currentPrice"`
	Status          Status  `json:"status"`
	TotalBids       int     `json:"totalBids"`
	SellerID        string  `json:"sellerId"`
	WinnerID        string  `json:"winnerId,omitempty"`
	ImageURLs       string  `json:"imageUrls,omitempty"`
	StartTime       string  `json:"startTime,omitempty"`
	EndTime         string  `json:"endTime,omitempty"`
	Category        string  `json:"category,omitempty"`
	Condition       string  `json:"condition,omitempty"`
}

// IsOpen reports whether bids are currently accepted.
func (a Auction) IsOpen() bool {
	return a.Status == StatusOpen
}

// WinnerNotice is the state surfaced when a targeted payment.required event
// names the locally authenticated user as the winner. It lives outside the
// auction list itself; the UI renders it on a distinct channel.
type WinnerNotice struct {
	AuctionID       string
	Title           string
	Amount          float64
	PaymentDeadline string
	SellerID        string
}
