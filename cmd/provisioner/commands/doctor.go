package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/systmms/provisioner/internal/config"
	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/systmms/provisioner/pkg/exec"
)

func NewDoctorCommand(cfg *config.Config) *cobra.Command {
	return newDoctorCommand(cfg, DefaultFactory())
}

// BackendHealth is one row of the doctor report.
type BackendHealth struct {
	Name       string
	Status     string // healthy, error, not configured
	Message    string
	Suggestion string
}

func newDoctorCommand(cfg *config.Config, factory Factory) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check configuration and connectivity to GitLab, Vault and Consul",
		Long: `Verify that the provisioner can run in this environment.

This command checks:
- Configuration sources and schema
- GitLab, Vault and Consul URLs, tokens and authentication
- The git binary`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Logger.Info("Checking provisioner configuration...")
			if err := cfg.Load(); err != nil {
				cfg.Logger.Error("Configuration error: %v", err)
				return err
			}
			cfg.Logger.Info("Configuration loaded")

			results := runChecks(cmd.Context(), cfg, factory)
			displayHealthResults(cmd.OutOrStdout(), results, verbose)

			healthy := 0
			for _, r := range results {
				if r.Status == "healthy" {
					healthy++
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %d/%d checks healthy\n", healthy, len(results))
			if healthy < len(results) {
				return fmt.Errorf("some checks are not healthy")
			}
			cfg.Logger.Info("All systems operational")
			return nil
		},
	}

	cmd.Flags().BoolVar(&verbose, "verbose", false, "Show suggestions for failing checks")

	return cmd
}

func runChecks(ctx context.Context, cfg *config.Config, factory Factory) []BackendHealth {
	s := cfg.Settings
	timeout := s.HTTPTimeout()

	check := func(name string, require func() error, probe func(context.Context) error) BackendHealth {
		h := BackendHealth{Name: name}
		if err := require(); err != nil {
			h.Status = "not configured"
			h.Message = firstLine(err.Error())
			var ce dserrors.ConfigError
			if errors.As(err, &ce) {
				h.Suggestion = ce.Suggestion
			}
			return h
		}
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		if err := probe(ctx); err != nil {
			h.Status = "error"
			h.Message = firstLine(err.Error())
			h.Suggestion = dserrors.Suggestion(name, err)
			return h
		}
		h.Status = "healthy"
		h.Message = "authenticated"
		return h
	}

	return []BackendHealth{
		check("gitlab", s.RequireGitLab, func(ctx context.Context) error {
			session, err := factory.Session(s)
			if err != nil {
				return err
			}
			return session.CheckAuthenticated(ctx)
		}),
		check("vault", s.RequireVault, func(ctx context.Context) error {
			client, err := factory.Vault(s, cfg.Logger)
			if err != nil {
				return err
			}
			return client.CheckAuthenticated(ctx)
		}),
		check("consul", s.RequireConsul, func(ctx context.Context) error {
			client, err := factory.Consul(s, cfg.Logger)
			if err != nil {
				return err
			}
			return client.CheckAuthenticated(ctx)
		}),
		gitCheck(ctx, factory.Executor),
	}
}

func gitCheck(ctx context.Context, executor exec.CommandExecutor) BackendHealth {
	h := BackendHealth{Name: "git"}
	stdout, _, err := executor.Execute(ctx, exec.Command{Name: "git", Args: []string{"--version"}})
	if err != nil {
		h.Status = "error"
		h.Message = firstLine(err.Error())
		h.Suggestion = "Install Git from https://git-scm.com/"
		return h
	}
	h.Status = "healthy"
	h.Message = strings.TrimSpace(string(stdout))
	return h
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// displayHealthResults prints the checks as a table.
func displayHealthResults(out io.Writer, results []BackendHealth, verbose bool) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintf(w, "CHECK\tSTATUS\tMESSAGE\n")
	_, _ = fmt.Fprintf(w, "-----\t------\t-------\n")

	for _, r := range results {
		status := r.Status
		switch r.Status {
		case "healthy":
			status = "✓ " + status
		case "error":
			status = "✗ " + status
		default:
			status = "? " + status
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", r.Name, status, r.Message)
	}
	_ = w.Flush()

	if !verbose {
		return
	}
	for _, r := range results {
		if r.Status != "healthy" && r.Suggestion != "" {
			_, _ = fmt.Fprintf(out, "\n%s suggestions:\n  • %s\n", r.Name, r.Suggestion)
		}
	}
}
