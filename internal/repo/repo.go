// Package repo clones the template and project repositories and pushes the
// generated code, chart and GitOps manifests back to GitLab.
//
// Git failures on one branch are logged and the remaining branches are still
// processed; the joined failures are returned at the end.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/fsutil"
	"github.com/systmms/provisioner/internal/logging"
	"github.com/systmms/provisioner/internal/vcs"
)

// Working copy directories, relative to the work dir.
const (
	CodeDir         = "code"
	ChartDir        = "chart"
	ProvisioningDir = "devops-project-provisioning"
)

// Template repositories in the template group.
const (
	TemplateJava11 = "gradle-single-module-java-11-template"
	TemplateJava21 = "gradle-single-module-java-21-template"
	TemplateMulti  = "gradle-multi-module-template"
	TemplateCI     = "ci-template"
)

// CommitMessage is used for every generated commit.
const CommitMessage = "Configured project"

// Git is the subset of the git client the workflow needs.
type Git interface {
	Clone(ctx context.Context, remote, dir string) error
	Snapshot(ctx context.Context, remote, dir string) error
	Fetch(ctx context.Context, dir string) error
	Checkout(ctx context.Context, dir, branch string) error
	AddAll(ctx context.Context, dir string) error
	HasChanges(ctx context.Context, dir string) (bool, error)
	Commit(ctx context.Context, dir, message string) error
	Push(ctx context.Context, dir, branch string) error
}

// Workspace holds the working copies of one provisioning run.
type Workspace struct {
	settings *config.Settings
	git      Git
	logger   *logging.Logger
}

func New(settings *config.Settings, git Git, logger *logging.Logger) *Workspace {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Workspace{settings: settings, git: git, logger: logger}
}

func (w *Workspace) remote(path string) string {
	gl := w.settings.GitLab
	return vcs.RemoteURL(gl.Host, gl.TokenName, gl.Token, path)
}

// CloneTemplates takes a snapshot of every template repository.
func (w *Workspace) CloneTemplates(ctx context.Context) error {
	var errs []error
	for _, name := range []string{TemplateJava11, TemplateJava21, TemplateMulti, TemplateCI} {
		dir := w.settings.Path(name)
		if err := fsutil.RemoveAll(dir); err != nil {
			return err
		}
		if err := w.git.Snapshot(ctx, w.remote(w.settings.Layout.TemplateGroup+"/"+name), dir); err != nil {
			w.logger.Error("Failed to clone template %s: %v", name, err)
			errs = append(errs, fmt.Errorf("template %s: %w", name, err))
			continue
		}
		w.logger.Info("Template %s cloned", name)
	}
	return errors.Join(errs...)
}

// CloneProjects clones the code, chart and provisioning repositories with
// their history.
func (w *Workspace) CloneProjects(ctx context.Context) error {
	s := w.settings
	repos := []struct {
		path, dir string
	}{
		{s.CodeGroupPath() + "/" + s.Project.Subgroup + "/" + s.Project.Name, CodeDir},
		{s.ChartGroupPath() + "/" + s.Project.Subgroup + "/" + s.ModuleName(), ChartDir},
		{s.ProvisioningProjectPath(), ProvisioningDir},
	}

	var errs []error
	for _, r := range repos {
		dir := s.Path(r.dir)
		if err := fsutil.RemoveAll(dir); err != nil {
			return err
		}
		if err := w.git.Clone(ctx, w.remote(r.path), dir); err != nil {
			w.logger.Error("Failed to clone %s: %v", r.path, err)
			errs = append(errs, fmt.Errorf("clone %s: %w", r.path, err))
			continue
		}
		w.logger.Info("Repository %s cloned into %s", r.path, r.dir)
	}
	return errors.Join(errs...)
}

// Clone runs CloneTemplates then CloneProjects.
func (w *Workspace) Clone(ctx context.Context) error {
	return errors.Join(w.CloneTemplates(ctx), w.CloneProjects(ctx))
}

// Push runs PushCode, PushChart and PushProvisioning.
func (w *Workspace) Push(ctx context.Context) error {
	return errors.Join(w.PushCode(ctx), w.PushChart(ctx), w.PushProvisioning(ctx))
}

// eachBranch fetches dir, then for every branch checks it out, runs
// configure and commits and pushes the result.
func (w *Workspace) eachBranch(ctx context.Context, dir string, branches []string, configure func(branch string) error) error {
	if err := w.git.Fetch(ctx, dir); err != nil {
		w.logger.Error("Git fetch failed in %s: %v", dir, err)
		return fmt.Errorf("fetch %s: %w", dir, err)
	}

	var errs []error
	for _, branch := range branches {
		if err := w.publish(ctx, dir, branch, configure); err != nil {
			w.logger.Error("Git command failed in %s: %v", branch, err)
			errs = append(errs, fmt.Errorf("%s@%s: %w", dir, branch, err))
		}
	}
	return errors.Join(errs...)
}

func (w *Workspace) publish(ctx context.Context, dir, branch string, configure func(string) error) error {
	if err := w.git.Checkout(ctx, dir, branch); err != nil {
		return err
	}
	if err := configure(branch); err != nil {
		return err
	}
	if err := w.git.AddAll(ctx, dir); err != nil {
		return err
	}
	changed, err := w.git.HasChanges(ctx, dir)
	if err != nil {
		return err
	}
	if !changed {
		w.logger.Warn("No changes on %s in %s, nothing pushed", branch, dir)
		return nil
	}
	if err := w.git.Commit(ctx, dir, CommitMessage); err != nil {
		return err
	}
	if err := w.git.Push(ctx, dir, branch); err != nil {
		return err
	}
	w.logger.Info("Pushed %s to %s", dir, branch)
	return nil
}
