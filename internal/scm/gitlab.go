package scm

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	dserrors "github.com/systmms/provisioner/internal/errors"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

// GitLabConfig holds configuration for creating a GitLab session.
type GitLabConfig struct {
	URL        string
	Token      string
	Timeout    time.Duration
	SkipVerify bool
}

// GitLab implements Session with gitlab.com/gitlab-org/api/client-go.
type GitLab struct {
	client *gitlab.Client
}

// NewGitLab creates a session against cfg.URL. No request is made until the
// first call; use CheckAuthenticated to validate the token.
func NewGitLab(cfg GitLabConfig) (*GitLab, error) {
	if cfg.Token == "" {
		return nil, dserrors.AuthError{Backend: "gitlab", Err: errors.New("invalid or missing GITLAB TOKEN")}
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.SkipVerify {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // self-signed GitLab instances
		httpClient.Transport = transport
	}

	client, err := gitlab.NewClient(cfg.Token,
		gitlab.WithBaseURL(cfg.URL),
		gitlab.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gitlab client: %w", err)
	}
	return &GitLab{client: client}, nil
}

func (g *GitLab) CheckAuthenticated(ctx context.Context) error {
	_, _, err := g.client.Version.GetVersion(gitlab.WithContext(ctx))
	if err != nil {
		err = classify(err)
		if dserrors.IsAuth(err) {
			return err
		}
		return fmt.Errorf("gitlab version check failed: %w", err)
	}
	return nil
}

func (g *GitLab) CreateGroup(ctx context.Context, name, path, visibility string, parentID int) (*Group, error) {
	grp, _, err := g.client.Groups.CreateGroup(&gitlab.CreateGroupOptions{
		Name:       gitlab.Ptr(name),
		Path:       gitlab.Ptr(path),
		Visibility: gitlab.Ptr(gitlab.VisibilityValue(visibility)),
		ParentID:   gitlab.Ptr(parentID),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return toGroup(grp), nil
}

func (g *GitLab) ListSubgroups(ctx context.Context, parentID int) ([]Group, error) {
	opt := &gitlab.ListSubGroupsOptions{}
	opt.PerPage = 100

	var out []Group
	for {
		groups, resp, err := g.client.Groups.ListSubGroups(parentID, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify(err)
		}
		for _, grp := range groups {
			out = append(out, *toGroup(grp))
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opt.Page = resp.NextPage
	}
}

func (g *GitLab) CreateProject(ctx context.Context, opts ProjectOptions) (*Project, error) {
	create := &gitlab.CreateProjectOptions{
		Name:                 gitlab.Ptr(opts.Name),
		NamespaceID:          gitlab.Ptr(opts.NamespaceID),
		Visibility:           gitlab.Ptr(gitlab.VisibilityValue(opts.Visibility)),
		InitializeWithReadme: gitlab.Ptr(false),
	}
	if p := opts.ExpirationPolicy; p != nil {
		create.ContainerExpirationPolicyAttributes = &gitlab.ContainerExpirationPolicyAttributes{
			Enabled:         gitlab.Ptr(p.Enabled),
			Cadence:         gitlab.Ptr(p.Cadence),
			KeepN:           gitlab.Ptr(p.KeepN),
			NameRegexKeep:   gitlab.Ptr(p.NameRegexKeep),
			OlderThan:       gitlab.Ptr(p.OlderThan),
			NameRegexDelete: gitlab.Ptr(p.NameRegexDelete),
		}
	}

	project, _, err := g.client.Projects.CreateProject(create, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return toProject(project), nil
}

func (g *GitLab) GetProject(ctx context.Context, idOrPath interface{}) (*Project, error) {
	project, _, err := g.client.Projects.GetProject(idOrPath, nil, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return toProject(project), nil
}

func (g *GitLab) ProtectBranch(ctx context.Context, projectID int, branch string, merge, push AccessLevel) error {
	_, _, err := g.client.ProtectedBranches.ProtectRepositoryBranches(projectID, &gitlab.ProtectRepositoryBranchesOptions{
		Name:             gitlab.Ptr(branch),
		MergeAccessLevel: gitlab.Ptr(gitlab.AccessLevelValue(merge)),
		PushAccessLevel:  gitlab.Ptr(gitlab.AccessLevelValue(push)),
	}, gitlab.WithContext(ctx))
	return classify(err)
}

func (g *GitLab) CreateBranch(ctx context.Context, projectID int, branch, ref string) error {
	_, _, err := g.client.Branches.CreateBranch(projectID, &gitlab.CreateBranchOptions{
		Branch: gitlab.Ptr(branch),
		Ref:    gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	return classify(err)
}

func (g *GitLab) FindUser(ctx context.Context, username string) (*User, error) {
	users, _, err := g.client.Users.ListUsers(&gitlab.ListUsersOptions{
		Username: gitlab.Ptr(username),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, classify(err)
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	return &User{ID: users[0].ID, Username: users[0].Username}, nil
}

func (g *GitLab) AddMember(ctx context.Context, projectID, userID int, level AccessLevel) error {
	_, _, err := g.client.ProjectMembers.AddProjectMember(projectID, &gitlab.AddProjectMemberOptions{
		UserID:      userID,
		AccessLevel: gitlab.Ptr(gitlab.AccessLevelValue(level)),
	}, gitlab.WithContext(ctx))
	return classify(err)
}

func (g *GitLab) ListVariables(ctx context.Context, projectID int) ([]Variable, error) {
	opt := &gitlab.ListProjectVariablesOptions{PerPage: 100}

	var out []Variable
	for {
		vars, resp, err := g.client.ProjectVariables.ListVariables(projectID, opt, gitlab.WithContext(ctx))
		if err != nil {
			return nil, classify(err)
		}
		for _, v := range vars {
			out = append(out, Variable{Key: v.Key})
		}
		if resp == nil || resp.NextPage == 0 {
			return out, nil
		}
		opt.Page = resp.NextPage
	}
}

func toGroup(g *gitlab.Group) *Group {
	return &Group{ID: g.ID, Name: g.Name, Path: g.Path, FullPath: g.FullPath}
}

func toProject(p *gitlab.Project) *Project {
	return &Project{ID: p.ID, Name: p.Name, PathWithNamespace: p.PathWithNamespace}
}

// classify maps GitLab API errors onto the package sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}

	// client-go reports 404 with a bare sentinel, not an ErrorResponse
	if errors.Is(err, gitlab.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	var apiErr *gitlab.ErrorResponse
	if errors.As(err, &apiErr) && apiErr.Response != nil {
		switch apiErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return dserrors.AuthError{Backend: "gitlab", Err: err}
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrNotFound, err)
		case http.StatusConflict:
			return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
		}
	}

	if isTaken(err.Error()) {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}

func isTaken(msg string) bool {
	return strings.Contains(msg, "has already been taken") || strings.Contains(msg, "already exists")
}

var _ Session = (*GitLab)(nil)
