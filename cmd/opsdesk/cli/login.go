package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/opsdesk/opsdesk/internal/config"
)

func newLoginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store the helpdesk API token",
		Long: `Store the bearer token used to authenticate against the upstream helpdesk
API. The token is persisted in the local config store and picked up by a
running server without a restart.`,
		Example: `  opsdesk login                 # prompts for the token
  opsdesk login --token hd_abc  # non-interactive`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(token)
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Helpdesk API token (prompted if omitted)")

	return cmd
}

func runLogin(token string) error {
	if token == "" {
		fmt.Print("Helpdesk API token: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}
		fmt.Println()
		token = strings.TrimSpace(string(raw))
	}
	if token == "" {
		return fmt.Errorf("token must not be empty")
	}

	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("open config store: %w", err)
	}
	defer store.Close()

	if err := store.SetSetting(context.Background(), config.SettingUpstreamToken, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}

	fmt.Println("Helpdesk token stored.")
	return nil
}
