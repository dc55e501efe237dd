package repo

import (
	"context"
	"path/filepath"

	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/fsutil"
	"github.com/systmms/provisioner/internal/manifest"
)

// CodeTemplate returns the template repository the code project is
// generated from. The second value reports whether placeholders in the
// single module files must be substituted. An empty name means the project
// only receives its pipeline file.
func CodeTemplate(s *config.Settings) (string, bool) {
	p := s.Project
	if p.Creation != config.CreationGeneration || p.Type != config.TypeBackend || p.ApplicationType != config.ApplicationGradle {
		return "", false
	}
	switch p.Mode {
	case config.ModeMulti:
		if p.ModuleCodeExists == "FALSE" {
			return TemplateMulti, false
		}
	case config.ModeMono:
		switch p.ApplicationVersion {
		case config.Java11:
			return TemplateJava11, true
		case config.Java21:
			return TemplateJava21, true
		}
	}
	return "", false
}

// PipelineSettings copies the project switches into the pipeline variables.
func PipelineSettings(s *config.Settings) manifest.PipelineSettings {
	p := s.Project
	return manifest.PipelineSettings{
		BranchingType:         p.BranchingType,
		ProjectType:           p.Type,
		ProjectTypeBackendDMZ: p.TypeBackendDMZ,
		ProjectMode:           p.Mode,
		ApplicationType:       p.ApplicationType,
		ReleaseType:           p.ReleaseType,
		CodeStyle:             p.CodeStyle,
		CodeCheckSnyk:         p.CodeCheckSnyk,
		ProjectTestStage:      p.TestStage,
	}
}

// PushCode generates the code project on every project branch.
func (w *Workspace) PushCode(ctx context.Context) error {
	dir := w.settings.Path(CodeDir)
	return w.eachBranch(ctx, dir, w.settings.Layout.Branches, func(string) error {
		return w.ConfigureCode(dir)
	})
}

// ConfigureCode copies the selected template into dir, fills in its
// placeholders and writes .gitlab-ci.yml.
func (w *Workspace) ConfigureCode(dir string) error {
	s := w.settings
	template, substitute := CodeTemplate(s)
	if template != "" {
		if err := fsutil.CopyTree(s.Path(template), dir); err != nil {
			return err
		}
	}
	if substitute {
		err := fsutil.ReplaceAll(filepath.Join(dir, "src", "main", "resources", "application.yaml"), []fsutil.Substitution{
			{Old: "__CD_APPLICATION_NAME__", New: s.Project.Name},
			{Old: "__CD_HELM_CONTAINER_PORT__", New: s.ContainerPort()},
			{Old: "__CD_HELM_MANAGEMENT_PORT__", New: s.ManagementPort()},
		})
		if err != nil {
			return err
		}
		if err := fsutil.Replace(filepath.Join(dir, "settings.gradle"), "__CD_HELM_CHART_NAME__", s.Project.Name); err != nil {
			return err
		}
	}
	return fsutil.SaveYAML(manifest.NewCIConfig(PipelineSettings(s)), filepath.Join(dir, ".gitlab-ci.yml"))
}
