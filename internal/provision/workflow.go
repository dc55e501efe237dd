// Package provision runs the project provisioning workflow: subgroups,
// projects, protected branches, memberships and per-environment namespace
// secrets. Every step returns a StepResult and the orchestrator decides from
// its Kind whether the current project continues.
package provision

import (
	"context"
	"errors"
	"time"

	"github.com/systmms/provisioner/internal/config"
	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/systmms/provisioner/internal/find"
	"github.com/systmms/provisioner/internal/logging"
	"github.com/systmms/provisioner/internal/metrics"
	"github.com/systmms/provisioner/internal/scm"
)

// Step names used in results and metrics.
const (
	StepSubgroup   = "subgroup"
	StepProject    = "project"
	StepProtect    = "protect_branch"
	StepBranch     = "create_branch"
	StepMembership = "membership"
	StepReporter   = "reporter_access"
	StepSecret     = "namespace_secret"
)

// Branch protection tiers. Merging is allowed one tier below pushing.
const (
	MergeAccess = scm.Developer
	PushAccess  = scm.Maintainer
	// MemberAccess is the single level every configured user is bound at.
	MemberAccess = scm.Reporter
)

// VaultSecrets is the Vault side of the namespace secret step.
type VaultSecrets interface {
	GenerateEnvironmentSecret(ctx context.Context, group, environment, namespace string) (string, error)
	WriteOrMergeSecret(ctx context.Context, mount, path, key, value string) error
}

// ConsulSecrets is the Consul side of the namespace secret step.
type ConsulSecrets interface {
	GenerateGroupSecret(ctx context.Context, group, namespace string) (string, error)
}

// Options select which parts of the workflow run.
type Options struct {
	SkipCode    bool
	SkipChart   bool
	SkipSecrets bool
}

// Workflow provisions one project. Construct it with New.
type Workflow struct {
	settings *config.Settings
	session  scm.Session
	vault    VaultSecrets
	consul   ConsulSecrets
	logger   *logging.Logger
	metrics  *metrics.Recorder

	report *Report
}

// Deps are the collaborators of a Workflow. Vault and Consul may be nil when
// secrets are skipped; Metrics may be nil.
type Deps struct {
	Session scm.Session
	Vault   VaultSecrets
	Consul  ConsulSecrets
	Logger  *logging.Logger
	Metrics *metrics.Recorder
}

func New(settings *config.Settings, deps Deps) *Workflow {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Workflow{
		settings: settings,
		session:  deps.Session,
		vault:    deps.Vault,
		consul:   deps.Consul,
		logger:   logger,
		metrics:  deps.Metrics,
	}
}

// errAbort stops the whole run; it is only produced for authentication
// failures.
type errAbort struct{ err error }

func (e errAbort) Error() string { return e.err.Error() }
func (e errAbort) Unwrap() error { return e.err }

// Run executes the workflow. The returned error is non-nil only when the run
// was aborted, which happens on authentication failures; every other problem
// is a Failed or Fatal result in the report.
func (w *Workflow) Run(ctx context.Context, opts Options) (*Report, error) {
	started := time.Now()
	w.report = &Report{}
	defer func() {
		w.metrics.Finish(started, w.report.Failed())
	}()

	if err := w.session.CheckAuthenticated(ctx); err != nil {
		return w.report, err
	}
	s := w.settings

	err := w.run(func() error {
		if opts.SkipCode {
			return nil
		}
		w.logger.Step("Code project %s", s.Project.Name)
		return w.provisionProject(ctx, projectSpec{
			label:      "CODE",
			parentID:   s.Layout.CodeGroupID,
			name:       s.Project.Name,
			expiration: expirationPolicy(s.Layout.ContainerExpiration),
		})
	}, func() error {
		if opts.SkipChart {
			return nil
		}
		w.logger.Step("Chart project %s", s.ModuleName())
		return w.provisionProject(ctx, projectSpec{
			label:    "CHART",
			parentID: s.Layout.ChartGroupID,
			name:     s.ModuleName(),
		})
	}, func() error {
		w.logger.Step("Reporter access to shared repositories")
		return w.grantReporterAccess(ctx)
	}, func() error {
		if opts.SkipSecrets {
			return nil
		}
		w.logger.Step("Namespace secrets for %s", s.Deploy.Namespace)
		return w.provisionSecrets(ctx)
	})

	var abort errAbort
	if errors.As(err, &abort) {
		return w.report, abort.err
	}
	return w.report, err
}

func (w *Workflow) run(phases ...func() error) error {
	for _, phase := range phases {
		if err := phase(); err != nil {
			return err
		}
	}
	return nil
}

// handle logs and records res and turns authentication failures into an
// abort.
func (w *Workflow) handle(res StepResult) error {
	if res.Err != nil && !dserrors.IsAuth(res.Err) && (res.Kind == Failed || res.Kind == Fatal) {
		res.Err = dserrors.ProviderError(res.backend(), res.Step, res.Err)
	}
	w.report.Results = append(w.report.Results, res)
	w.metrics.Step(res.Step, res.Kind.String())

	switch res.Kind {
	case Done, AlreadyExists:
		w.logger.Info("%s", res.Message)
	case Skipped:
		w.logger.Warn("%s", res.Message)
	case Failed, Fatal:
		if res.Err != nil {
			w.logger.Error("%s: %v", res.Message, res.Err)
		} else {
			w.logger.Error("%s", res.Message)
		}
	}

	if res.Err != nil && dserrors.IsAuth(res.Err) {
		return errAbort{err: res.Err}
	}
	return nil
}

type projectSpec struct {
	label      string
	parentID   int
	name       string
	expiration *scm.ExpirationPolicy
}

func expirationPolicy(p config.ContainerPolicy) *scm.ExpirationPolicy {
	return &scm.ExpirationPolicy{
		Enabled:         p.Enabled,
		Cadence:         p.Cadence,
		KeepN:           p.KeepN,
		NameRegexKeep:   p.NameRegexKeep,
		OlderThan:       p.OlderThan,
		NameRegexDelete: p.NameRegex,
	}
}

// provisionProject runs steps 1 to 4 for one project. A Fatal or Failed
// subgroup or project result ends this project only.
func (w *Workflow) provisionProject(ctx context.Context, spec projectSpec) error {
	groupID, res := w.resolveSubgroup(ctx, spec.parentID)
	if err := w.handle(res); err != nil {
		return err
	}
	if res.Kind == Failed || res.Kind == Fatal {
		return nil
	}

	project, res := w.createProject(ctx, spec, groupID)
	if err := w.handle(res); err != nil {
		return err
	}
	switch res.Kind {
	case Fatal, Failed:
		return nil
	}

	for i, branch := range w.settings.Layout.Branches {
		if err := w.handle(w.protectBranch(ctx, project, branch)); err != nil {
			return err
		}
		if err := w.handle(w.createBranch(ctx, project, branch, refFor(w.settings.Layout.Branches, i))); err != nil {
			return err
		}
	}

	for _, group := range []struct {
		role  string
		users []string
	}{
		{"maintainer", w.settings.Maintainers()},
		{"developer", w.settings.Developers()},
	} {
		for _, username := range group.users {
			if err := w.handle(w.addMember(ctx, project, group.role, username)); err != nil {
				return err
			}
		}
	}
	return nil
}

// refFor is the source of the i-th branch: the default branch for the first
// one, the previous branch otherwise.
func refFor(branches []string, i int) string {
	if i == 0 {
		return "main"
	}
	return branches[i-1]
}

// resolveSubgroup creates the subgroup under parentID or, when its path is
// already taken, finds the existing one by exact path.
func (w *Workflow) resolveSubgroup(ctx context.Context, parentID int) (int, StepResult) {
	name := w.settings.Project.Subgroup

	grp, err := w.session.CreateGroup(ctx, name, name, w.settings.Layout.Visibility, parentID)
	if err == nil {
		return grp.ID, result(StepSubgroup, Done, nil, "Subgroup '%s' created", name)
	}
	if !errors.Is(err, scm.ErrAlreadyExists) {
		return 0, result(StepSubgroup, Failed, err, "Failed to create subgroup '%s'", name)
	}

	groups, err := w.session.ListSubgroups(ctx, parentID)
	if err != nil {
		return 0, result(StepSubgroup, Failed, err, "Failed to list subgroups of %d", parentID)
	}
	existing, ok := find.First(groups, func(g scm.Group) bool { return g.Path == name })
	if !ok {
		return 0, result(StepSubgroup, Failed, nil, "Subgroup '%s' is taken but not a child of %d", name, parentID)
	}
	return existing.ID, result(StepSubgroup, AlreadyExists, nil, "Subgroup '%s' already exists", name)
}

func (w *Workflow) createProject(ctx context.Context, spec projectSpec, groupID int) (*scm.Project, StepResult) {
	project, err := w.session.CreateProject(ctx, scm.ProjectOptions{
		Name:             spec.name,
		NamespaceID:      groupID,
		Visibility:       w.settings.Layout.Visibility,
		ExpirationPolicy: spec.expiration,
	})
	switch {
	case err == nil:
		return project, result(StepProject, Done, nil, "Project '%s' created successfully", spec.name)
	case errors.Is(err, scm.ErrAlreadyExists):
		return nil, result(StepProject, Fatal, nil, "Project '%s' already exists in %s group. Skipping creation", spec.name, spec.label)
	default:
		return nil, result(StepProject, Failed, err, "Failed to create project '%s'", spec.name)
	}
}

func (w *Workflow) protectBranch(ctx context.Context, project *scm.Project, branch string) StepResult {
	err := w.session.ProtectBranch(ctx, project.ID, branch, MergeAccess, PushAccess)
	switch {
	case err == nil:
		return result(StepProtect, Done, nil, "Branch '%s' protected (merge: %s, push: %s)", branch, MergeAccess, PushAccess)
	case errors.Is(err, scm.ErrAlreadyExists):
		return result(StepProtect, AlreadyExists, nil, "Branch '%s' is already protected", branch)
	default:
		return result(StepProtect, Failed, err, "Failed to protect branch '%s'", branch)
	}
}

func (w *Workflow) createBranch(ctx context.Context, project *scm.Project, branch, ref string) StepResult {
	err := w.session.CreateBranch(ctx, project.ID, branch, ref)
	switch {
	case err == nil:
		return result(StepBranch, Done, nil, "Branch '%s' created from '%s' in %s", branch, ref, project.Name)
	case errors.Is(err, scm.ErrAlreadyExists):
		return result(StepBranch, AlreadyExists, nil, "Branch '%s' already exists in %s", branch, project.Name)
	default:
		return result(StepBranch, Failed, err, "Creation of branch '%s' in %s", branch, project.Name)
	}
}

func (w *Workflow) addMember(ctx context.Context, project *scm.Project, role, username string) StepResult {
	user, err := w.session.FindUser(ctx, username)
	if errors.Is(err, scm.ErrNotFound) {
		return result(StepMembership, Skipped, nil, "%s for %s access is not available", username, role)
	}
	if err != nil {
		return result(StepMembership, Failed, err, "Failed to look up %s", username)
	}

	err = w.session.AddMember(ctx, project.ID, user.ID, MemberAccess)
	switch {
	case err == nil:
		return result(StepMembership, Done, nil, "Added %s: %s", role, username)
	case errors.Is(err, scm.ErrAlreadyExists):
		return result(StepMembership, AlreadyExists, nil, "%s is already a member of %s", username, project.Name)
	default:
		return result(StepMembership, Failed, err, "Failed to add %s %s", role, username)
	}
}

// grantReporterAccess gives every maintainer and developer reporter access
// to the CI image and CI template repositories.
func (w *Workflow) grantReporterAccess(ctx context.Context) error {
	repos := []struct {
		name string
		id   int
	}{
		{"CI Image Repository", w.settings.Layout.ImageRepoID},
		{"CI Template Repository", w.settings.Layout.TemplateRepoID},
	}

	for _, username := range w.settings.Reporters() {
		user, err := w.session.FindUser(ctx, username)
		if err != nil {
			res := result(StepReporter, Failed, err, "Failed to look up %s", username)
			if errors.Is(err, scm.ErrNotFound) {
				res = result(StepReporter, Skipped, nil, "%s for reporter access is not available", username)
			}
			if err := w.handle(res); err != nil {
				return err
			}
			continue
		}

		for _, repo := range repos {
			err := w.session.AddMember(ctx, repo.id, user.ID, scm.Reporter)
			var res StepResult
			switch {
			case err == nil:
				res = result(StepReporter, Done, nil, "Reporter access granted to '%s' in %s project", username, repo.name)
			case errors.Is(err, scm.ErrAlreadyExists):
				res = result(StepReporter, AlreadyExists, nil, "User '%s' already has access in %s project", username, repo.name)
			default:
				res = result(StepReporter, Failed, err, "Failed to grant '%s' access in %s project", username, repo.name)
			}
			if err := w.handle(res); err != nil {
				return err
			}
		}
	}
	return nil
}
