package auction

import (
	"github.com/sirupsen/logrus"

	"gavel.live/cli/internal/core/stream"
)

// Refetch reloads the full auction list from the gateway. The reducer calls
// it when an auction-opened event arrives, because that event carries no
// auction payload of its own.
type Refetch func() error

// WinnerHandler receives targeted winner notifications. It runs on the
// stream loop, so implementations must be quick (hand off to a channel).
type WinnerHandler func(WinnerNotice)

// Reducer applies decoded stream events to the auction list store. It is the
// store's only event-driven writer. All mutations are last-write-wins per
// field, so replaying events across a reconnect converges; the one accepted
// gap is the totalBids increment fallback (see ApplyBid).
type Reducer struct {
	store      *ListStore
	highlights *HighlightSet
	localUser  string
	refetch    Refetch
	onWinner   WinnerHandler
	logger     *logrus.Logger

	ackedUserID string
}

// NewReducer creates a reducer bound to a store and highlight set. localUser
// is the locally authenticated username used to filter targeted events.
func NewReducer(store *ListStore, highlights *HighlightSet, localUser string, refetch Refetch, onWinner WinnerHandler, logger *logrus.Logger) *Reducer {
	if logger == nil {
		logger = logrus.New()
		logger.SetLevel(logrus.PanicLevel)
	}
	return &Reducer{
		store:      store,
		highlights: highlights,
		localUser:  localUser,
		refetch:    refetch,
		onWinner:   onWinner,
		logger:     logger,
	}
}

// AckedUserID returns the user id the server acknowledged on the stream's
// connected handshake, if any.
func (r *Reducer) AckedUserID() string {
	return r.ackedUserID
}

// Apply merges one event into the store. Events are applied strictly in
// arrival order; unknown types are ignored without error.
func (r *Reducer) Apply(ev stream.Event) {
	action := ev.Action()

	switch action {
	case stream.ActionStreamConnected:
		r.ackedUserID = ev.UserID
		r.logger.WithField("user_id", ev.UserID).Debug("stream acknowledged connection")

	case stream.ActionBidPlaced:
		r.applyBid(ev)

	case stream.ActionAuctionOpened:
		// The push event carries no auction payload; refresh the whole list.
		if r.refetch == nil {
			return
		}
		if err := r.refetch(); err != nil {
			r.logger.WithError(err).Warn("auction list refetch failed")
		}

	case stream.ActionAuctionClosed:
		id, ok := ev.DataString("auctionId")
		if !ok {
			return
		}
		r.store.Update(id, func(a *Auction) {
			a.Status = StatusClosed
		})

	case stream.ActionPaymentRequired:
		r.applyPaymentRequired(ev)

	case stream.ActionAuctionWon:
		// Informational; acknowledge in the log, mutate nothing.
		r.logger.WithField("type", ev.Type).Debug("auction won notification received")

	default:
		r.logger.WithField("type", ev.Type).Debug("ignoring unknown event type")
	}
}

// applyBid handles the public price-broadcast alias group. The new price
// prefers data.newPrice, then data.amount, else keeps the cached value. The
// bid total prefers the authoritative data.bidCount; without it the cached
// count is incremented, which double-counts on redelivery. Servers that want
// idempotent replay must send bidCount.
func (r *Reducer) applyBid(ev stream.Event) {
	id, ok := ev.DataString("auctionId")
	if !ok {
		return
	}

	updated := r.store.Update(id, func(a *Auction) {
		if price, ok := ev.DataNumber("newPrice"); ok {
			a.CurrentBid = price
		} else if amount, ok := ev.DataNumber("amount"); ok {
			a.CurrentBid = amount
		}

		if count, ok := ev.DataNumber("bidCount"); ok {
			a.TotalBids = int(count)
		} else {
			a.TotalBids++
		}
	})
	if !updated {
		r.logger.WithField("auction_id", id).Debug("bid event for uncached auction dropped")
		return
	}

	r.highlights.Mark(id)
}

// applyPaymentRequired handles the targeted winner event. It acts only when
// the payload names the locally authenticated user; every other client must
// ignore it.
func (r *Reducer) applyPaymentRequired(ev stream.Event) {
	winnerID, _ := ev.DataString("winnerId")
	if winnerID == "" || winnerID != r.localUser {
		return
	}

	id, _ := ev.DataString("auctionId")

	notice := WinnerNotice{AuctionID: id, Title: "Auction"}
	if cached, ok := r.store.Get(id); ok {
		if cached.Title != "" {
			notice.Title = cached.Title
		}
		notice.Amount = cached.CurrentBid
		notice.SellerID = cached.SellerID
	}
	if amount, ok := ev.DataNumber("amount"); ok {
		notice.Amount = amount
	}
	if deadline, ok := ev.DataString("paymentDeadline"); ok {
		notice.PaymentDeadline = deadline
	}
	if seller, ok := ev.DataString("sellerId"); ok {
		notice.SellerID = seller
	}

	r.logger.WithFields(logrus.Fields{
		"auction_id": id,
		"amount":     notice.Amount,
	}).Info("payment required for won auction")

	if r.onWinner != nil {
		r.onWinner(notice)
	}
}
