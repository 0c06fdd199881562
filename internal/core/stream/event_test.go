package stream

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// TestClassify_AliasTable_CollapsesSpellingDrift tests that every known
// producer spelling lands on the canonical action
func TestClassify_AliasTable_CollapsesSpellingDrift(t *testing.T) {
	tests := []struct {
		name      string
		eventType string
		expected  Action
	}{
		{"connected handshake", "connected", ActionStreamConnected},
		{"bid placed dotted", "bid.placed", ActionBidPlaced},
		{"bid placed plural dotted", "bids.placed", ActionBidPlaced},
		{"bid placed compact", "bidplaced", ActionBidPlaced},
		{"bid placed plural compact", "bidsplaced", ActionBidPlaced},
		{"price updated dotted", "price.updated", ActionBidPlaced},
		{"price updated compact", "priceupdated", ActionBidPlaced},
		{"auction opened dotted", "auction.opened", ActionAuctionOpened},
		{"auction opened compact", "auctionopened", ActionAuctionOpened},
		{"auction closed dotted", "auction.closed", ActionAuctionClosed},
		{"auction closed compact", "auctionclosed", ActionAuctionClosed},
		{"payment required dotted", "payment.required", ActionPaymentRequired},
		{"payment required compact", "paymentrequired", ActionPaymentRequired},
		{"auction won dotted", "auction.won", ActionAuctionWon},
		{"auction won compact", "auctionwon", ActionAuctionWon},
		{"mixed case", "BidPlaced", ActionBidPlaced},
		{"uppercase dotted", "AUCTION.CLOSED", ActionAuctionClosed},
		{"surrounding whitespace", "  bid.placed  ", ActionBidPlaced},
		{"unknown type", "inventory.restocked", ActionNone},
		{"empty type", "", ActionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Classify(tt.eventType))
		})
	}
}

// TestClassify_CaseInsensitive_Property verifies casing never changes the
// classification
func TestClassify_CaseInsensitive_Property(t *testing.T) {
	known := make([]string, 0, len(aliasTable))
	for k := range aliasTable {
		known = append(known, k)
	}

	rapid.Check(t, func(t *rapid.T) {
		base := rapid.SampledFrom(known).Draw(t, "eventType")

		// Flip the casing of random characters
		chars := []rune(base)
		for i := range chars {
			if rapid.Bool().Draw(t, "flip") {
				chars[i] = []rune(strings.ToUpper(string(chars[i])))[0]
			}
		}
		scrambled := string(chars)

		if Classify(scrambled) != Classify(base) {
			t.Fatalf("casing changed classification: %q vs %q", scrambled, base)
		}
	})
}

// TestEvent_Action_UsesOwnType tests the envelope convenience method
func TestEvent_Action_UsesOwnType(t *testing.T) {
	ev := Event{Type: "Price.Updated"}
	assert.Equal(t, ActionBidPlaced, ev.Action())
}

// TestEvent_DataString_ReturnsTypedFields tests payload field access
func TestEvent_DataString_ReturnsTypedFields(t *testing.T) {
	ev := Event{Data: map[string]interface{}{
		"auctionId": "a1",
		"amount":    150.0,
	}}

	v, ok := ev.DataString("auctionId")
	require.True(t, ok)
	assert.Equal(t, "a1", v)

	// Wrong type
	_, ok = ev.DataString("amount")
	assert.False(t, ok)

	// Missing key
	_, ok = ev.DataString("winnerId")
	assert.False(t, ok)

	// Nil payload
	_, ok = Event{}.DataString("auctionId")
	assert.False(t, ok)
}

// TestEvent_DataNumber_AcceptsNumericKinds tests numeric payload access
func TestEvent_DataNumber_AcceptsNumericKinds(t *testing.T) {
	ev := Event{Data: map[string]interface{}{
		"float":  150.5,
		"int":    int(3),
		"int64":  int64(7),
		"string": "150",
	}}

	v, ok := ev.DataNumber("float")
	require.True(t, ok)
	assert.Equal(t, 150.5, v)

	v, ok = ev.DataNumber("int")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	v, ok = ev.DataNumber("int64")
	require.True(t, ok)
	assert.Equal(t, 7.0, v)

	// Strings are not coerced
	_, ok = ev.DataNumber("string")
	assert.False(t, ok)

	_, ok = ev.DataNumber("missing")
	assert.False(t, ok)
}

// TestAction_String_NamesAllActions covers the diagnostic names
func TestAction_String_NamesAllActions(t *testing.T) {
	assert.Equal(t, "bid_placed", ActionBidPlaced.String())
	assert.Equal(t, "none", ActionNone.String())
	assert.Equal(t, "none", Action(99).String())
}
