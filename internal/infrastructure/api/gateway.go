// Package api implements the request/response clients for the marketplace
// services behind the gateway: auction CRUD, the CQRS bid endpoints and
// payment intents.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"gavel.live/cli/internal/application/ports"
	"gavel.live/cli/internal/core/auction"
)

// BearerSource supplies the Authorization credential for API calls.
type BearerSource interface {
	Tokens(ctx context.Context) (*ports.TokenPair, error)
}

// MarketplaceGateway talks to the auction, bid and payment services through
// the single API gateway. All calls go through a shared retry policy and
// circuit breaker.
type MarketplaceGateway struct {
	endpoint    string
	httpClient  *http.Client
	bearer      BearerSource
	retryPolicy *RetryPolicy
	breaker     *CircuitBreaker
	logger      *logrus.Logger
}

// NewMarketplaceGateway creates a gateway client. bearer may be nil for
// unauthenticated calls (public listings).
func NewMarketplaceGateway(endpoint string, bearer BearerSource, logger *logrus.Logger) *MarketplaceGateway {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &MarketplaceGateway{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		bearer:      bearer,
		retryPolicy: DefaultRetryPolicy(),
		breaker:     NewCircuitBreaker(5, 60*time.Second),
		logger:      logger,
	}
}

// WithRetryPolicy overrides the default retry policy. Tests use short
// delays.
func (g *MarketplaceGateway) WithRetryPolicy(policy *RetryPolicy) *MarketplaceGateway {
	g.retryPolicy = policy
	return g
}

// ListAuctions fetches the full auction collection.
func (g *MarketplaceGateway) ListAuctions(ctx context.Context) ([]auction.Auction, error) {
	var out []auction.Auction
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodGet, "/api/auctions", nil, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("listing auctions: %w", err)
	}
	return out, nil
}

// GetAuction fetches one auction by id.
func (g *MarketplaceGateway) GetAuction(ctx context.Context, id string) (*auction.Auction, error) {
	var out auction.Auction
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodGet, "/api/auctions/"+id, nil, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching auction %s: %w", id, err)
	}
	return &out, nil
}

// CreateAuction creates a draft auction.
func (g *MarketplaceGateway) CreateAuction(ctx context.Context, req ports.CreateAuctionRequest) (*auction.Auction, error) {
	var out auction.Auction
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodPost, "/api/auctions", req, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("creating auction: %w", err)
	}
	return &out, nil
}

// OpenAuction opens a draft auction for bidding.
func (g *MarketplaceGateway) OpenAuction(ctx context.Context, id string) error {
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodPost, "/api/auctions/"+id+"/open", nil, nil)
	})
	if err != nil {
		return fmt.Errorf("opening auction %s: %w", id, err)
	}
	return nil
}

// CloseAuction closes an open auction.
func (g *MarketplaceGateway) CloseAuction(ctx context.Context, id string) error {
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodPost, "/api/auctions/"+id+"/close", nil, nil)
	})
	if err != nil {
		return fmt.Errorf("closing auction %s: %w", id, err)
	}
	return nil
}

// PlaceBid submits a bid through the bid write service.
func (g *MarketplaceGateway) PlaceBid(ctx context.Context, auctionID string, amount float64) (*ports.BidResult, error) {
	payload := map[string]interface{}{
		"auctionId": auctionID,
		"amount":    amount,
	}
	var out ports.BidResult
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodPost, "/api/bids", payload, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("placing bid on %s: %w", auctionID, err)
	}
	return &out, nil
}

// ListBids returns the bid history from the bid read service.
func (g *MarketplaceGateway) ListBids(ctx context.Context, auctionID string) ([]ports.Bid, error) {
	var out []ports.Bid
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodGet, "/api/bids/"+auctionID, nil, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("listing bids for %s: %w", auctionID, err)
	}
	return out, nil
}

// CreatePaymentIntent starts payment for a won auction.
func (g *MarketplaceGateway) CreatePaymentIntent(ctx context.Context, auctionID string) (*ports.PaymentIntent, error) {
	payload := map[string]interface{}{
		"auctionId": auctionID,
	}
	var out ports.PaymentIntent
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodPost, "/api/payments/intent", payload, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("creating payment intent for %s: %w", auctionID, err)
	}
	return &out, nil
}

// ConfirmPayment confirms a previously created intent.
func (g *MarketplaceGateway) ConfirmPayment(ctx context.Context, intentID string) error {
	payload := map[string]interface{}{
		"intentId": intentID,
	}
	err := g.executeWithRetry(func() error {
		return g.doJSON(ctx, http.MethodPost, "/api/payments/confirm", payload, nil)
	})
	if err != nil {
		return fmt.Errorf("confirming payment %s: %w", intentID, err)
	}
	return nil
}

// doJSON performs one HTTP round trip with JSON encoding both ways.
func (g *MarketplaceGateway) doJSON(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.endpoint+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "gavel-cli/1.0")
	req.Header.Set("X-Request-ID", uuid.NewString())

	if g.bearer != nil {
		pair, err := g.bearer.Tokens(ctx)
		if err == nil && pair.BearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+pair.BearerToken)
		}
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	g.logger.WithFields(logrus.Fields{
		"method":     method,
		"path":       path,
		"status":     resp.StatusCode,
		"latency_ms": time.Since(start).Milliseconds(),
	}).Debug("gateway request")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

// executeWithRetry runs fn under the retry policy and circuit breaker.
func (g *MarketplaceGateway) executeWithRetry(fn func() error) error {
	if !g.breaker.CanExecute() {
		return fmt.Errorf("circuit breaker is open")
	}

	var lastErr error
	for attempt := 0; attempt < g.retryPolicy.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := g.retryPolicy.Delay(attempt)
			g.logger.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"delay":   delay,
			}).Debug("retrying gateway request")
			time.Sleep(delay)
		}

		err := fn()
		if err == nil {
			g.breaker.RecordSuccess()
			return nil
		}

		lastErr = err
		g.breaker.RecordFailure()

		if !shouldRetry(err) {
			break
		}
	}

	return fmt.Errorf("request failed after %d attempts: %w", g.retryPolicy.MaxAttempts, lastErr)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

var (
	_ ports.AuctionGateway = (*MarketplaceGateway)(nil)
	_ ports.BidGateway     = (*MarketplaceGateway)(nil)
	_ ports.PaymentGateway = (*MarketplaceGateway)(nil)
)
