package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"gavel.live/cli/internal/infrastructure/config"
	"gavel.live/cli/internal/interfaces/di"
)

// newConfigCommand creates the config subcommand
func newConfigCommand(container *di.Container) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and change client configuration",
	}

	cmd.AddCommand(newConfigShowCommand(container))
	cmd.AddCommand(newConfigSetCommand(container))

	return cmd
}

// newConfigShowCommand creates the config show subcommand
func newConfigShowCommand(container *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := container.Config
			fmt.Printf("Config directory:    %s\n", config.Dir())
			fmt.Printf("gateway-url:         %s\n", cfg.GatewayURL)
			fmt.Printf("events-url:          %s\n", cfg.StreamURL())
			fmt.Printf("reconnect-delay-ms:  %d\n", cfg.ReconnectDelayMs)
			fmt.Printf("max-reconnects:      %d\n", cfg.MaxReconnectAttempts)
			fmt.Printf("auto-connect:        %t\n", cfg.AutoConnect)
			fmt.Printf("auto-reconnect:      %t\n", cfg.AutoReconnect)
			fmt.Printf("debug:               %t\n", cfg.Debug)
			return nil
		},
	}
}

// newConfigSetCommand creates the config set subcommand
func newConfigSetCommand(container *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Long:  `Set a configuration value and persist it to the config file. Environment variables still take precedence at load time.`,
		Example: `  gavel config set gateway-url https://api.gavel.live
  gavel config set reconnect-delay-ms 2000
  gavel config set auto-reconnect false`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			cfg := container.Config

			switch key {
			case "gateway-url":
				cfg.GatewayURL = value
			case "events-url":
				cfg.EventsURL = value
			case "reconnect-delay-ms":
				n, err := strconv.Atoi(value)
				if err != nil || n <= 0 {
					return fmt.Errorf("reconnect-delay-ms must be a positive integer")
				}
				cfg.ReconnectDelayMs = n
			case "max-reconnects":
				n, err := strconv.Atoi(value)
				if err != nil || n < 0 {
					return fmt.Errorf("max-reconnects must be a non-negative integer (0 = unlimited)")
				}
				cfg.MaxReconnectAttempts = n
			case "auto-connect":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("auto-connect must be true or false")
				}
				cfg.AutoConnect = b
			case "auto-reconnect":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("auto-reconnect must be true or false")
				}
				cfg.AutoReconnect = b
			case "debug":
				b, err := strconv.ParseBool(value)
				if err != nil {
					return fmt.Errorf("debug must be true or false")
				}
				cfg.Debug = b
			default:
				return fmt.Errorf("unknown configuration key %q", key)
			}

			if err := config.Save(cfg); err != nil {
				return fmt.Errorf("failed to save configuration: %w", err)
			}
			container.Config = cfg
			fmt.Printf("✅ %s = %s\n", key, value)
			return nil
		},
	}
}
