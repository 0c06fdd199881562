package cli

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"gavel.live/cli/internal/interfaces/di"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// NewRootCommand builds the base command and attaches all subcommands.
func NewRootCommand(container *di.Container) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gavel",
		Short: "Gavel - auction marketplace client",
		Long: `Gavel is a terminal client for the auction marketplace. It lists and
manages auctions, places bids, pays winning bids, and runs a live dashboard
fed by the gateway's real-time event stream.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("gateway") {
				url, _ := cmd.Flags().GetString("gateway")
				container.ApplyGatewayOverride(url)
			}
			if debugFlag, _ := cmd.Flags().GetBool("debug"); debugFlag {
				container.ApplyDebugOverride()
			}
			return nil
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().Bool("debug", false, "Enable verbose diagnostic logging")
	rootCmd.PersistentFlags().String("gateway", "", "API gateway URL override")

	rootCmd.AddCommand(newLoginCommand(container))
	rootCmd.AddCommand(newLogoutCommand(container))
	rootCmd.AddCommand(newAuctionsCommand(container))
	rootCmd.AddCommand(newBidCommand(container))
	rootCmd.AddCommand(newPayCommand(container))
	rootCmd.AddCommand(newWatchCommand(container))
	rootCmd.AddCommand(newConfigCommand(container))

	return rootCmd
}

// goVersion returns the Go version used to build the binary.
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the root command.
func Execute(container *di.Container) {
	rootCmd := NewRootCommand(container)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
