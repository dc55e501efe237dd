package commands

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/credstore"
	dserrors "github.com/systmms/provisioner/internal/errors"
)

func NewLoginCommand(cfg *config.Config) *cobra.Command {
	var remove bool

	cmd := &cobra.Command{
		Use:   "login [gitlab|vault|consul]",
		Short: "Store a backend token in the OS keyring",
		Long: `Store a token in the operating system keyring. Tokens found there are
used when the matching CI_*_TOKEN variable is not set.

The token is read from the first line of standard input.

Examples:
  provisioner login                          # Show which tokens are stored
  echo "$TOKEN" | provisioner login vault    # Store the Vault token
  provisioner login consul --delete          # Remove the Consul token`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{credstore.GitLab, credstore.Vault, credstore.Consul},
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Keyring == nil {
				return dserrors.UserError{
					Message:    "OS keyring is disabled",
					Suggestion: "Drop --no-keyring or pass tokens through CI_*_TOKEN variables",
				}
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				for _, account := range []string{credstore.GitLab, credstore.Vault, credstore.Consul} {
					status := "stored"
					if _, err := cfg.Keyring.Get(account); err != nil {
						status = "not stored"
						if !errors.Is(err, credstore.ErrNotFound) {
							status = "error: " + err.Error()
						}
					}
					_, _ = fmt.Fprintf(out, "  %-8s %s\n", account, status)
				}
				return nil
			}

			account := strings.ToLower(args[0])
			if !credstore.IsKnownAccount(account) {
				return dserrors.UserError{
					Message:    fmt.Sprintf("unknown backend %q", args[0]),
					Suggestion: "Use one of: gitlab, vault, consul",
				}
			}

			if remove {
				if err := cfg.Keyring.Delete(account); err != nil {
					return err
				}
				cfg.Logger.Info("Token for %s removed from keyring", account)
				return nil
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			var token string
			if scanner.Scan() {
				token = strings.TrimSpace(scanner.Text())
			}
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("failed to read token: %w", err)
			}
			if token == "" {
				return dserrors.UserError{
					Message:    "no token on standard input",
					Suggestion: fmt.Sprintf("echo \"$TOKEN\" | provisioner login %s", account),
				}
			}

			if err := cfg.Keyring.Set(account, token); err != nil {
				return err
			}
			cfg.Logger.Info("Token for %s stored in keyring", account)
			return nil
		},
	}

	cmd.Flags().BoolVar(&remove, "delete", false, "Remove the stored token")

	return cmd
}
