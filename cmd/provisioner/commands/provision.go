package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/metrics"
	"github.com/systmms/provisioner/internal/provision"
)

func NewProvisionCommand(cfg *config.Config) *cobra.Command {
	return newProvisionCommand(cfg, DefaultFactory())
}

func newProvisionCommand(cfg *config.Config, factory Factory) *cobra.Command {
	var opts provision.Options

	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the GitLab projects, branches, members and namespace secrets",
		Long: `Provision a project end to end:

  1. subgroup under the code and chart groups
  2. code project (with container expiration policy) and chart project
  3. protected develop/master branches
  4. maintainers and developers as reporters
  5. reporter access to the CI image and CI template repositories
  6. Consul, Vault and registry secrets per deployment branch

A project that already exists stops the steps of that project only. Any
authentication failure stops the whole run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := []func(*config.Settings) error{
				(*config.Settings).RequireProject,
				(*config.Settings).RequireGitLab,
			}
			if !opts.SkipSecrets {
				checks = append(checks,
					(*config.Settings).RequireDeploy,
					(*config.Settings).RequireVault,
					(*config.Settings).RequireConsul,
				)
			}
			if err := load(cfg, checks...); err != nil {
				return err
			}
			s := cfg.Settings
			ctx := cmd.Context()

			session, err := factory.Session(s)
			if err != nil {
				return err
			}
			deps := provision.Deps{
				Session: session,
				Logger:  cfg.Logger,
				Metrics: metrics.New(),
			}

			if !opts.SkipSecrets {
				vc, err := factory.Vault(s, cfg.Logger)
				if err != nil {
					return err
				}
				if err := vc.CheckAuthenticated(ctx); err != nil {
					return err
				}
				cc, err := factory.Consul(s, cfg.Logger)
				if err != nil {
					return err
				}
				if err := cc.CheckAuthenticated(ctx); err != nil {
					return err
				}
				deps.Vault, deps.Consul = vc, cc
			}

			report, runErr := provision.New(s, deps).Run(ctx, opts)
			if report != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "\nSummary: %s\n", report.Summary())
			}
			if err := deps.Metrics.WriteTextfile(cfg.MetricsFile); err != nil {
				cfg.Logger.Warn("Failed to write metrics to %s: %v", cfg.MetricsFile, err)
			}

			if runErr != nil {
				return runErr
			}
			if report.Failed() {
				return errors.New("provisioning finished with failed steps")
			}
			cfg.Logger.Info("Provisioning of %s/%s complete", s.Project.Subgroup, s.Project.Name)
			return nil
		},
	}

	cmd.Flags().BoolVar(&opts.SkipCode, "skip-code", false, "Do not create the code project")
	cmd.Flags().BoolVar(&opts.SkipChart, "skip-chart", false, "Do not create the chart project")
	cmd.Flags().BoolVar(&opts.SkipSecrets, "skip-secrets", false, "Do not mint namespace secrets (no Vault or Consul access)")

	return cmd
}
