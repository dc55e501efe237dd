// Package vcs drives the git command line for the repository workflow.
package vcs

import (
	"context"
	"errors"
	"net/url"
	osexec "os/exec"
	"path/filepath"
	"strings"

	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/systmms/provisioner/internal/fsutil"
	"github.com/systmms/provisioner/internal/logging"
	"github.com/systmms/provisioner/pkg/exec"
)

// Identity is the author recorded on commits.
type Identity struct {
	Name  string
	Email string
}

// Git runs git commands through a CommandExecutor.
type Git struct {
	executor exec.CommandExecutor
	identity Identity
	logger   *logging.Logger
}

func New(executor exec.CommandExecutor, identity Identity, logger *logging.Logger) *Git {
	if executor == nil {
		executor = exec.DefaultExecutor()
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Git{executor: executor, identity: identity, logger: logger}
}

// RemoteURL builds an HTTPS clone URL that authenticates with a project or
// personal access token.
func RemoteURL(host, tokenName, token, path string) string {
	u := url.URL{
		Scheme: "https",
		User:   url.UserPassword(tokenName, token),
		Host:   host,
		Path:   "/" + strings.TrimSuffix(strings.Trim(path, "/"), ".git") + ".git",
	}
	return u.String()
}

// Redacted masks the password of an URL. Strings that are not URLs are
// returned unchanged.
func Redacted(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}

// Clone clones remote into dir with its history.
func (g *Git) Clone(ctx context.Context, remote, dir string) error {
	g.logger.Debug("Cloning %s into %s", Redacted(remote), dir)
	_, err := g.run(ctx, "", "clone", remote, dir)
	return err
}

// Snapshot clones the tip of remote into dir and removes its .git directory,
// leaving a plain copy of the files.
func (g *Git) Snapshot(ctx context.Context, remote, dir string) error {
	g.logger.Debug("Snapshot of %s into %s", Redacted(remote), dir)
	if _, err := g.run(ctx, "", "clone", "--depth", "1", remote, dir); err != nil {
		return err
	}
	return fsutil.RemoveAll(filepath.Join(dir, ".git"))
}

func (g *Git) Fetch(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "fetch", "origin")
	return err
}

// Checkout switches dir to branch, tracking origin/<branch> when the branch
// only exists on the remote.
func (g *Git) Checkout(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "checkout", branch)
	return err
}

// AddAll stages every change in dir, deletions included.
func (g *Git) AddAll(ctx context.Context, dir string) error {
	_, err := g.run(ctx, dir, "add", "-A")
	return err
}

// HasChanges reports whether dir has staged or unstaged changes.
func (g *Git) HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := g.run(ctx, dir, "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(out) != "", nil
}

func (g *Git) Commit(ctx context.Context, dir, message string) error {
	args := []string{}
	if g.identity.Name != "" {
		args = append(args, "-c", "user.name="+g.identity.Name)
	}
	if g.identity.Email != "" {
		args = append(args, "-c", "user.email="+g.identity.Email)
	}
	args = append(args, "commit", "-m", message)
	_, err := g.run(ctx, dir, args...)
	return err
}

// Push pushes branch to origin and sets it as upstream.
func (g *Git) Push(ctx context.Context, dir, branch string) error {
	_, err := g.run(ctx, dir, "push", "--set-upstream", "origin", branch)
	return err
}

func (g *Git) run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.Command{
		Dir:  dir,
		Env:  []string{"GIT_TERMINAL_PROMPT=0"},
		Name: "git",
		Args: args,
	}
	stdout, stderr, err := g.executor.Execute(ctx, cmd)
	if err == nil {
		return string(stdout), nil
	}
	if errors.Is(err, osexec.ErrNotFound) {
		return "", dserrors.WrapCommandNotFound("git", err)
	}

	cmdErr := dserrors.CommandError{
		Command: "git " + subcommand(args),
		Message: redactAll(strings.TrimSpace(string(stderr)), args),
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		cmdErr.ExitCode = exitErr.ExitCode()
	}
	if cmdErr.Message == "" {
		cmdErr.Message = redactAll(err.Error(), args)
	}
	cmdErr.Suggestion = dserrors.Suggestion("git", errors.New(cmdErr.Message))
	return "", cmdErr
}

// subcommand is the first argument that is not a global option.
func subcommand(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "-c" {
			i++
			continue
		}
		return args[i]
	}
	return ""
}

// redactAll replaces every credential-carrying URL of args found in s.
func redactAll(s string, args []string) string {
	for _, a := range args {
		if r := Redacted(a); r != a {
			s = strings.ReplaceAll(s, a, r)
			if u, err := url.Parse(a); err == nil {
				if p, ok := u.User.Password(); ok && p != "" {
					s = strings.ReplaceAll(s, p, "xxxxx")
				}
			}
		}
	}
	return s
}
