package stream

import (
	"strings"
)

// Event is the envelope pushed by the gateway on the live event stream.
// Type is an open string enum: the server may introduce new types at any
// time, and several historical spellings denote the same semantic event, so
// consumers must go through Classify rather than matching Type directly.
type Event struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
	UserID    string                 `json:"userId,omitempty"`
	Message   string                 `json:"message,omitempty"`
}

// Action is the semantic action an event maps to after alias normalization.
type Action int

const (
	// ActionNone covers unknown event types. Consumers must ignore them so
	// new producer versions can add types without breaking older clients.
	ActionNone Action = iota
	ActionStreamConnected
	ActionBidPlaced
	ActionAuctionOpened
	ActionAuctionClosed
	ActionPaymentRequired
	ActionAuctionWon
)

// String returns a readable name for diagnostics.
func (a Action) String() string {
	switch a {
	case ActionStreamConnected:
		return "stream_connected"
	case ActionBidPlaced:
		return "bid_placed"
	case ActionAuctionOpened:
		return "auction_opened"
	case ActionAuctionClosed:
		return "auction_closed"
	case ActionPaymentRequired:
		return "payment_required"
	case ActionAuctionWon:
		return "auction_won"
	default:
		return "none"
	}
}

// aliasTable collapses the casing and pluralization drift between producer
// versions into one canonical action per semantic event. Keys are lowercase;
// Classify lowercases before lookup so "BidPlaced" and "bid.placed" land on
// the same row.
var aliasTable = map[string]Action{
	"connected": ActionStreamConnected,

	"bid.placed":    ActionBidPlaced,
	"bids.placed":   ActionBidPlaced,
	"bidplaced":     ActionBidPlaced,
	"bidsplaced":    ActionBidPlaced,
	"price.updated": ActionBidPlaced,
	"priceupdated":  ActionBidPlaced,

	"auction.opened": ActionAuctionOpened,
	"auctionopened":  ActionAuctionOpened,

	"auction.closed": ActionAuctionClosed,
	"auctionclosed":  ActionAuctionClosed,

	"payment.required": ActionPaymentRequired,
	"paymentrequired":  ActionPaymentRequired,

	"auction.won": ActionAuctionWon,
	"auctionwon":  ActionAuctionWon,
}

// Classify maps an event type string to its semantic action. Unknown types
// map to ActionNone and must never be treated as an error.
func Classify(eventType string) Action {
	return aliasTable[strings.ToLower(strings.TrimSpace(eventType))]
}

// Action classifies the event's own type.
func (e Event) Action() Action {
	return Classify(e.Type)
}

// DataString returns a string field from the event payload.
func (e Event) DataString(key string) (string, bool) {
	if e.Data == nil {
		return "", false
	}
	v, ok := e.Data[key].(string)
	return v, ok
}

// DataNumber returns a numeric field from the event payload. JSON numbers
// decode as float64; integer-typed values from test fixtures are accepted
// too.
func (e Event) DataNumber(key string) (float64, bool) {
	if e.Data == nil {
		return 0, false
	}
	switch v := e.Data[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
