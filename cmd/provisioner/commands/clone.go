package commands

import (
	"github.com/spf13/cobra"
	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/repo"
)

func NewCloneCommand(cfg *config.Config) *cobra.Command {
	return newCloneCommand(cfg, DefaultFactory())
}

func newCloneCommand(cfg *config.Config, factory Factory) *cobra.Command {
	var templatesOnly, projectsOnly bool

	cmd := &cobra.Command{
		Use:   "clone",
		Short: "Clone the template and project repositories into the work dir",
		Long: `Clone the repositories the push command works on.

Template repositories are copied without history. The code, chart and
provisioning repositories are cloned with history so they can be pushed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cfg, (*config.Settings).RequireProject, (*config.Settings).RequireGitLab); err != nil {
				return err
			}
			ws := repo.New(cfg.Settings, factory.Git(cfg.Settings, cfg.Logger), cfg.Logger)

			switch {
			case templatesOnly:
				return ws.CloneTemplates(cmd.Context())
			case projectsOnly:
				return ws.CloneProjects(cmd.Context())
			}
			return ws.Clone(cmd.Context())
		},
	}

	cmd.Flags().BoolVar(&templatesOnly, "templates-only", false, "Only clone the template repositories")
	cmd.Flags().BoolVar(&projectsOnly, "projects-only", false, "Only clone the code, chart and provisioning repositories")
	cmd.MarkFlagsMutuallyExclusive("templates-only", "projects-only")

	return cmd
}
