package provision

import (
	"context"
	"fmt"
	"strings"

	"github.com/systmms/provisioner/internal/scm"
)

type protection struct {
	project     int
	branch      string
	merge, push scm.AccessLevel
}

type branchCall struct {
	project     int
	branch, ref string
}

type membership struct {
	project, user int
	level         scm.AccessLevel
}

// MockSession implements scm.Session in memory.
type MockSession struct {
	Users         map[string]int
	Subgroups     map[int][]scm.Group // parent id -> children
	Projects      map[string]bool     // "<namespace id>/<name>" of existing projects
	Variables     []scm.Variable
	AuthErr       error
	CreateBranchE error
	FindUserErr   error

	nextID      int
	protections []protection
	branches    []branchCall
	members     []membership
	created     []scm.ProjectOptions
}

func newMockSession() *MockSession {
	return &MockSession{
		Users:     map[string]int{},
		Subgroups: map[int][]scm.Group{},
		Projects:  map[string]bool{},
		nextID:    100,
	}
}

func (m *MockSession) id() int {
	m.nextID++
	return m.nextID
}

func (m *MockSession) CheckAuthenticated(context.Context) error { return m.AuthErr }

func (m *MockSession) CreateGroup(_ context.Context, name, path, _ string, parentID int) (*scm.Group, error) {
	for _, g := range m.Subgroups[parentID] {
		if g.Path == path {
			return nil, fmt.Errorf("path has already been taken: %w", scm.ErrAlreadyExists)
		}
	}
	g := scm.Group{ID: m.id(), Name: name, Path: path}
	m.Subgroups[parentID] = append(m.Subgroups[parentID], g)
	return &g, nil
}

func (m *MockSession) ListSubgroups(_ context.Context, parentID int) ([]scm.Group, error) {
	return m.Subgroups[parentID], nil
}

func (m *MockSession) CreateProject(_ context.Context, opts scm.ProjectOptions) (*scm.Project, error) {
	m.created = append(m.created, opts)
	key := fmt.Sprintf("%d/%s", opts.NamespaceID, opts.Name)
	if m.Projects[key] {
		return nil, fmt.Errorf("name has already been taken: %w", scm.ErrAlreadyExists)
	}
	m.Projects[key] = true
	return &scm.Project{ID: m.id(), Name: opts.Name}, nil
}

func (m *MockSession) GetProject(_ context.Context, idOrPath interface{}) (*scm.Project, error) {
	return &scm.Project{ID: 3502, PathWithNamespace: fmt.Sprint(idOrPath)}, nil
}

func (m *MockSession) ProtectBranch(_ context.Context, projectID int, branch string, merge, push scm.AccessLevel) error {
	m.protections = append(m.protections, protection{projectID, branch, merge, push})
	return nil
}

func (m *MockSession) CreateBranch(_ context.Context, projectID int, branch, ref string) error {
	m.branches = append(m.branches, branchCall{projectID, branch, ref})
	if m.CreateBranchE != nil && branch == "develop" {
		return m.CreateBranchE
	}
	return nil
}

func (m *MockSession) FindUser(_ context.Context, username string) (*scm.User, error) {
	if m.FindUserErr != nil {
		return nil, m.FindUserErr
	}
	id, ok := m.Users[username]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", username, scm.ErrNotFound)
	}
	return &scm.User{ID: id, Username: username}, nil
}

func (m *MockSession) AddMember(_ context.Context, projectID, userID int, level scm.AccessLevel) error {
	for _, mem := range m.members {
		if mem.project == projectID && mem.user == userID {
			return fmt.Errorf("Member already exists: %w", scm.ErrAlreadyExists)
		}
	}
	m.members = append(m.members, membership{projectID, userID, level})
	return nil
}

func (m *MockSession) ListVariables(context.Context, int) ([]scm.Variable, error) {
	return m.Variables, nil
}

func (m *MockSession) membersOf(projectID int) []membership {
	var out []membership
	for _, mem := range m.members {
		if mem.project == projectID {
			out = append(out, mem)
		}
	}
	return out
}

type kvWrite struct {
	mount, path, key, value string
}

// MockVault implements VaultSecrets.
type MockVault struct {
	GenerateErr error
	envs        []string
	writes      []kvWrite
}

func (m *MockVault) GenerateEnvironmentSecret(_ context.Context, group, env, namespace string) (string, error) {
	if m.GenerateErr != nil {
		return "", m.GenerateErr
	}
	m.envs = append(m.envs, env)
	return fmt.Sprintf("kind: Secret\nmetadata:\n  name: vault-%s\n  namespace: %s\n", group, namespace), nil
}

func (m *MockVault) WriteOrMergeSecret(_ context.Context, mount, path, key, value string) error {
	m.writes = append(m.writes, kvWrite{mount, path, key, value})
	return nil
}

// MockConsul implements ConsulSecrets.
type MockConsul struct {
	calls int
}

func (m *MockConsul) GenerateGroupSecret(_ context.Context, group, namespace string) (string, error) {
	m.calls++
	return fmt.Sprintf("kind: Secret\nmetadata:\n  name: consul-%s\n  namespace: %s\n", group, namespace), nil
}

func documents(stream string) []string {
	return strings.Split(stream, "---\n")
}

var (
	_ scm.Session   = (*MockSession)(nil)
	_ VaultSecrets  = (*MockVault)(nil)
	_ ConsulSecrets = (*MockConsul)(nil)
)
