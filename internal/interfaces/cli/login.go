package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gavel.live/cli/internal/interfaces/di"
)

// newLoginCommand creates the login subcommand
func newLoginCommand(container *di.Container) *cobra.Command {
	var username string
	var password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the marketplace",
		Long:  `Sign in with your marketplace account. Credentials are exchanged for tokens which are stored locally and reused by other commands.`,
		Example: `  gavel login --username alice
  gavel login --username alice --password s3cret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if username == "" {
				return fmt.Errorf("username is required")
			}
			if password == "" {
				fmt.Print("Password: ")
				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read password: %w", err)
				}
				password = strings.TrimSpace(line)
			}
			if password == "" {
				return fmt.Errorf("password is required")
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if _, err := container.Identity.SignIn(ctx, username, password); err != nil {
				return fmt.Errorf("sign in failed: %w", err)
			}

			who, err := container.Identity.Username()
			if err != nil {
				who = username
			}

			fmt.Printf("✅ Signed in as %s\n", who)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Marketplace username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (prompted if omitted)")
	cmd.MarkFlagRequired("username")

	return cmd
}

// newLogoutCommand creates the logout subcommand
func newLogoutCommand(container *di.Container) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored credentials",
		Long:  `Remove the locally stored tokens. Subsequent commands that need authentication will require signing in again.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := container.Identity.SignOut(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}
			fmt.Printf("✅ Logged out\n")
			return nil
		},
	}
}
