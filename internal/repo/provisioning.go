package repo

import (
	"context"
	"path/filepath"

	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/fsutil"
	"github.com/systmms/provisioner/internal/manifest"
)

// Manifest directories inside the provisioning repository.
var (
	AppProjectDir  = filepath.Join("manifests", "argocd_proj_workflow")
	ApplicationDir = filepath.Join("manifests", "argocd_app_workflow")
	NamespaceDir   = filepath.Join("manifests", "k8s_namespace_setup")
)

// PushProvisioning writes the GitOps manifests on every deployment branch of
// the provisioning repository.
func (w *Workspace) PushProvisioning(ctx context.Context) error {
	dir := w.settings.Path(ProvisioningDir)
	return w.eachBranch(ctx, dir, w.settings.EnvBranches(), func(branch string) error {
		_, err := WriteManifests(w.settings, dir, branch)
		return err
	})
}

// WriteManifests renders the AppProject, Application and Namespace of
// branch below root and returns the written paths.
func WriteManifests(s *config.Settings, root, branch string) ([]string, error) {
	subgroupKey := fsutil.KeyFormat(s.Project.Subgroup)

	env := config.EnvProd
	if e, ok := config.EnvironmentFor(branch); ok {
		env = e
	}

	docs := []struct {
		path string
		doc  interface{}
	}{
		{
			filepath.Join(root, AppProjectDir, subgroupKey+".yml"),
			manifest.NewAppProject(s.Project.Subgroup, s.Deploy.Namespace),
		},
		{
			filepath.Join(root, ApplicationDir, subgroupKey, fsutil.KeyFormat(s.Project.Name)+".yml"),
			manifest.NewApplication(manifest.ApplicationParams{
				ServerHost:  s.GitLab.Host,
				Subgroup:    s.Project.Subgroup,
				Environment: env,
				ChartName:   s.ModuleName(),
				Branch:      config.GitBranchFor(branch),
				ChartGroup:  s.ChartGroupPath(),
				Project:     s.Project.Name,
				Namespace:   s.Deploy.Namespace,
			}),
		},
		{
			filepath.Join(root, NamespaceDir, s.NamespaceKey()+"__.yml"),
			manifest.NewNamespace(s.Deploy.Namespace),
		},
	}

	written := make([]string, 0, len(docs))
	for _, d := range docs {
		if err := fsutil.CreateDir(filepath.Dir(d.path)); err != nil {
			return written, err
		}
		if err := fsutil.SaveYAML(d.doc, d.path); err != nil {
			return written, err
		}
		written = append(written, d.path)
	}
	return written, nil
}
