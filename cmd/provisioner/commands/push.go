package commands

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/repo"
)

func NewPushCommand(cfg *config.Config) *cobra.Command {
	return newPushCommand(cfg, DefaultFactory())
}

func newPushCommand(cfg *config.Config, factory Factory) *cobra.Command {
	var skipCode, skipChart, skipProvisioning bool

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Generate and push the code, chart and GitOps manifests",
		Long: `Generate files in the cloned repositories and push them.

  code:          template, placeholders and .gitlab-ci.yml on develop and master
  chart:         Helm chart with develop.yaml / master.yaml values
  provisioning:  AppProject, Application and Namespace per deployment branch

Run 'provisioner clone' first. A failure on one branch does not stop the
others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			checks := []func(*config.Settings) error{
				(*config.Settings).RequireProject,
			}
			if !skipProvisioning {
				checks = append(checks, (*config.Settings).RequireDeploy)
			}
			if err := load(cfg, checks...); err != nil {
				return err
			}
			ws := repo.New(cfg.Settings, factory.Git(cfg.Settings, cfg.Logger), cfg.Logger)
			ctx := cmd.Context()

			var errs []error
			if !skipCode {
				cfg.Logger.Step("Code repository")
				errs = append(errs, ws.PushCode(ctx))
			}
			if !skipChart {
				cfg.Logger.Step("Chart repository")
				errs = append(errs, ws.PushChart(ctx))
			}
			if !skipProvisioning {
				cfg.Logger.Step("Provisioning repository")
				errs = append(errs, ws.PushProvisioning(ctx))
			}
			return errors.Join(errs...)
		},
	}

	cmd.Flags().BoolVar(&skipCode, "skip-code", false, "Do not push the code repository")
	cmd.Flags().BoolVar(&skipChart, "skip-chart", false, "Do not push the chart repository")
	cmd.Flags().BoolVar(&skipProvisioning, "skip-provisioning", false, "Do not push the provisioning repository")

	return cmd
}
