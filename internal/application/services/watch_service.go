package services

import (
	"context"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"gavel.live/cli/internal/application/ports"
	"gavel.live/cli/internal/core/auction"
	"gavel.live/cli/internal/infrastructure/config"
	"gavel.live/cli/internal/infrastructure/sse"
)

// WatchService wires the live-update pipeline together: token provider →
// stream connection manager → event decoder → reducer → auction list store.
// The UI reads store snapshots and connection state; nothing else touches
// the pipeline.
type WatchService struct {
	cfg        config.Config
	identity   ports.IdentityGateway
	auctions   ports.AuctionGateway
	store      *auction.ListStore
	highlights *auction.HighlightSet
	reducer    *auction.Reducer
	manager    *sse.Manager
	logger     *logrus.Logger
	notices    chan auction.WinnerNotice
}

// NewWatchService builds the pipeline. It fails when no authenticated user
// exists, because the stream credential and the targeted-event filter both
// require one.
func NewWatchService(cfg config.Config, identity ports.IdentityGateway, auctions ports.AuctionGateway, logger *logrus.Logger) (*WatchService, error) {
	username, err := identity.Username()
	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}

	s := &WatchService{
		cfg:        cfg,
		identity:   identity,
		auctions:   auctions,
		store:      auction.NewListStore(),
		highlights: auction.NewHighlightSet(auction.DefaultHighlightTTL),
		logger:     logger,
		notices:    make(chan auction.WinnerNotice, 8),
	}

	s.reducer = auction.NewReducer(s.store, s.highlights, username, s.Refetch, s.pushNotice, logger)

	s.manager = sse.NewManager(sse.Config{
		URL:            cfg.StreamURL(),
		ReconnectDelay: cfg.ReconnectDelay(),
		MaxAttempts:    cfg.MaxReconnectAttempts,
		AutoReconnect:  cfg.AutoReconnect,
		Logger:         logger,
	}, identity, sse.Callbacks{
		OnOpen:  s.refreshAfterOpen,
		OnEvent: s.reducer.Apply,
	})

	return s, nil
}

// refreshAfterOpen reloads the list on every successful stream open. Events
// published while the client was disconnected are never re-delivered, so the
// cache must be rebuilt before the stream's merges resume. It runs off the
// stream loop: Refetch blocks on HTTP and OnOpen must not.
func (s *WatchService) refreshAfterOpen() {
	go func() {
		if err := s.Refetch(); err != nil {
			s.logger.WithError(err).Warn("auction list refresh after stream open failed")
		}
	}()
}

// Start loads the initial auction list, starts the stream run loop and, when
// auto-connect is on, opens the connection.
func (s *WatchService) Start(ctx context.Context) error {
	if err := s.Refetch(); err != nil {
		// The stream can still deliver updates for a list fetched later;
		// don't make a cold gateway fatal.
		s.logger.WithError(err).Warn("initial auction list fetch failed")
	}

	s.manager.Start(ctx)
	if s.cfg.AutoConnect {
		s.manager.Connect()
	}
	return nil
}

// Stop tears down the stream.
func (s *WatchService) Stop() {
	s.manager.Stop()
}

// Refetch replaces the cached auction list with a fresh full fetch,
// discarding highlight state.
func (s *WatchService) Refetch() error {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	auctions, err := s.auctions.ListAuctions(ctx)
	if err != nil {
		return err
	}

	s.store.ReplaceAll(auctions)
	s.highlights.Clear()
	s.logger.WithField("count", len(auctions)).Debug("auction list refreshed")
	return nil
}

// Store exposes read access to the cached auction list.
func (s *WatchService) Store() *auction.ListStore {
	return s.store
}

// Highlights exposes the recently-updated marker set.
func (s *WatchService) Highlights() *auction.HighlightSet {
	return s.highlights
}

// Connection returns the stream state snapshot for rendering.
func (s *WatchService) Connection() sse.Snapshot {
	return s.manager.Snapshot()
}

// Notices delivers targeted winner notifications.
func (s *WatchService) Notices() <-chan auction.WinnerNotice {
	return s.notices
}

// Connect requests a stream connection.
func (s *WatchService) Connect() { s.manager.Connect() }

// Disconnect closes the stream.
func (s *WatchService) Disconnect() { s.manager.Disconnect() }

// Reconnect is the user-initiated retry after the stream went terminal.
func (s *WatchService) Reconnect() { s.manager.Reconnect() }

func (s *WatchService) pushNotice(notice auction.WinnerNotice) {
	select {
	case s.notices <- notice:
	default:
		s.logger.Warn("winner notice channel full, dropping notification")
	}
}
