package commands

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/fsutil"
	"github.com/systmms/provisioner/internal/manifest"
	"github.com/systmms/provisioner/internal/repo"
)

func NewRenderCommand(cfg *config.Config) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render the generated manifests into a directory without touching GitLab",
		Long: `Render everything the push command would write, offline.

For every deployment branch the AppProject, Application and Namespace are
written below <out>/<branch>/manifests. The project pipeline is written to
<out>/.gitlab-ci.yml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cfg, (*config.Settings).RequireProject, (*config.Settings).RequireDeploy); err != nil {
				return err
			}
			s := cfg.Settings
			out := cmd.OutOrStdout()

			if err := fsutil.ResetDir(outDir); err != nil {
				return err
			}

			for _, branch := range s.EnvBranches() {
				paths, err := repo.WriteManifests(s, filepath.Join(outDir, branch), branch)
				if err != nil {
					return err
				}
				for _, p := range paths {
					_, _ = fmt.Fprintln(out, p)
				}
			}

			ci := filepath.Join(outDir, ".gitlab-ci.yml")
			if err := fsutil.SaveYAML(manifest.NewCIConfig(repo.PipelineSettings(s)), ci); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(out, ci)

			cfg.Logger.Info("Rendered %d deployment branches into %s", len(s.EnvBranches()), outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "rendered", "Output directory (emptied first)")

	return cmd
}
