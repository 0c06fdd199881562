// Package di wires the application together.
package di

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"gavel.live/cli/internal/infrastructure/api"
	"gavel.live/cli/internal/infrastructure/auth"
	"gavel.live/cli/internal/infrastructure/config"
	"gavel.live/cli/internal/infrastructure/logging"
)

// Container holds all application dependencies.
type Container struct {
	Config   config.Config
	Logger   logging.Logger
	Identity *auth.IdentityProvider
	Gateway  *api.MarketplaceGateway
}

// NewContainer loads configuration and constructs the dependency graph.
func NewContainer() (*Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	logger := logging.NewLogger(os.Stderr, cfg.Debug)

	credStore := auth.NewCredentialsStore(config.Dir())
	identity := auth.NewIdentityProvider(cfg.GatewayURL, credStore)
	gateway := api.NewMarketplaceGateway(cfg.GatewayURL, identity, logger)

	return &Container{
		Config:   cfg,
		Logger:   logger,
		Identity: identity,
		Gateway:  gateway,
	}, nil
}

// ApplyGatewayOverride swaps the gateway URL at runtime (set by the
// --gateway flag) and rebuilds the clients that bake it in.
func (c *Container) ApplyGatewayOverride(url string) {
	c.Config.GatewayURL = url
	credStore := auth.NewCredentialsStore(config.Dir())
	c.Identity = auth.NewIdentityProvider(url, credStore)
	c.Gateway = api.NewMarketplaceGateway(url, c.Identity, c.Logger)
}

// ApplyDebugOverride raises the log level at runtime.
func (c *Container) ApplyDebugOverride() {
	c.Config.Debug = true
	c.Logger.SetLevel(logrus.DebugLevel)
}
