package repo

import (
	"context"
	"path/filepath"

	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/fsutil"
)

// ChartValues are the placeholder substitutions of the values file for
// profile (dev or prod).
func ChartValues(s *config.Settings, profile string) []fsutil.Substitution {
	return []fsutil.Substitution{
		{Old: "__CD_HELM_CHART_NAME__", New: s.ModuleName()},
		{Old: "__CD_PROJECT_NAME__", New: s.ChartProjectName()},
		{Old: "__CD_APPLICATION_NAME__", New: s.ModuleName()},
		{Old: "__CD_HELM_NAMESPACE__", New: s.Deploy.Namespace},
		{Old: "__CD_GROUP_NAME__", New: s.CodeGroupPath()},
		{Old: "__CD_SUBGROUP_NAME__", New: s.Project.Subgroup},
		{Old: "__CD_HELM_CONTAINER_PORT__", New: s.ContainerPort()},
		{Old: "__CD_HELM_MANAGEMENT_PORT__", New: s.ManagementPort()},
		{Old: "__CD_HELM_MANAGEMENT_ENABLED__", New: s.ManagementEnabled()},
		{Old: "__CD_HELM_SERVICE_PORT__", New: s.ServicePort()},
		{Old: "__CD_REPLICA_COUNT__", New: s.Replicas(profile)},
		{Old: "__CD_HELM_DOMAIN_NAME__", New: s.DomainName(profile)},
		{Old: "__CI_SERVER_HOST__", New: s.GitLab.Host},
		{Old: "__CD_PROFILE_NAME__", New: profile},
	}
}

// profileFor maps a project branch to its Helm profile.
func profileFor(branch string) (string, bool) {
	switch branch {
	case "develop":
		return config.EnvDev, true
	case "master":
		return config.EnvProd, true
	}
	return "", false
}

// PushChart generates the Helm chart on every project branch.
func (w *Workspace) PushChart(ctx context.Context) error {
	dir := w.settings.Path(ChartDir)
	return w.eachBranch(ctx, dir, w.settings.Layout.Branches, func(branch string) error {
		return w.ConfigureChart(dir, branch)
	})
}

// ConfigureChart copies the chart template into dir and renders the values
// file of branch. Branches without a profile only receive the template.
func (w *Workspace) ConfigureChart(dir, branch string) error {
	s := w.settings
	if err := fsutil.CopyTree(s.Path(s.Paths.HelmChartTemplate), dir); err != nil {
		return err
	}

	profile, ok := profileFor(branch)
	if !ok {
		w.logger.Warn("Branch %s has no Helm profile, values.yaml left as is", branch)
		return nil
	}

	values := filepath.Join(dir, branch+".yaml")
	if err := fsutil.Rename(filepath.Join(dir, "values.yaml"), values); err != nil {
		return err
	}
	if err := fsutil.Replace(filepath.Join(dir, "Chart.yaml"), "__CD_HELM_CHART_NAME__", s.ModuleName()); err != nil {
		return err
	}
	return fsutil.ReplaceAll(values, ChartValues(s, profile))
}
