// Package scm is the source-control session used by the provisioning
// workflow: groups, projects, protected branches, memberships and CI
// variables on a GitLab server.
package scm

import (
	"context"
	"errors"
)

var (
	// ErrAlreadyExists wraps a creation rejected because the resource is
	// already there ("has already been taken", "already exists").
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound wraps a lookup that matched nothing.
	ErrNotFound = errors.New("not found")
)

// AccessLevel is a GitLab membership tier. Higher values grant more.
type AccessLevel int

const (
	Guest      AccessLevel = 10
	Reporter   AccessLevel = 20
	Developer  AccessLevel = 30
	Maintainer AccessLevel = 40
)

func (l AccessLevel) String() string {
	switch l {
	case Guest:
		return "guest"
	case Reporter:
		return "reporter"
	case Developer:
		return "developer"
	case Maintainer:
		return "maintainer"
	}
	return "unknown"
}

type Group struct {
	ID       int
	Name     string
	Path     string
	FullPath string
}

type Project struct {
	ID                int
	Name              string
	PathWithNamespace string
}

type User struct {
	ID       int
	Username string
}

type Variable struct {
	Key string
}

// ExpirationPolicy is the container registry cleanup policy of a project.
type ExpirationPolicy struct {
	Enabled         bool
	Cadence         string
	KeepN           int
	NameRegexKeep   string
	OlderThan       string
	NameRegexDelete string
}

// ProjectOptions describes a project to create. ExpirationPolicy is left
// unset for chart projects.
type ProjectOptions struct {
	Name             string
	NamespaceID      int
	Visibility       string
	ExpirationPolicy *ExpirationPolicy
}

// Session is the set of source-control operations the workflow needs.
// Implementations return errors wrapping ErrAlreadyExists or ErrNotFound
// where the operation defines them, and errors.AuthError for rejected
// credentials.
type Session interface {
	CheckAuthenticated(ctx context.Context) error
	CreateGroup(ctx context.Context, name, path, visibility string, parentID int) (*Group, error)
	ListSubgroups(ctx context.Context, parentID int) ([]Group, error)
	CreateProject(ctx context.Context, opts ProjectOptions) (*Project, error)
	// GetProject accepts a numeric id or a full path.
	GetProject(ctx context.Context, idOrPath interface{}) (*Project, error)
	ProtectBranch(ctx context.Context, projectID int, branch string, merge, push AccessLevel) error
	CreateBranch(ctx context.Context, projectID int, branch, ref string) error
	FindUser(ctx context.Context, username string) (*User, error)
	AddMember(ctx context.Context, projectID, userID int, level AccessLevel) error
	ListVariables(ctx context.Context, projectID int) ([]Variable, error)
}
