package commands

import (
	"context"

	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/consul"
	"github.com/systmms/provisioner/internal/logging"
	"github.com/systmms/provisioner/internal/provision"
	"github.com/systmms/provisioner/internal/repo"
	"github.com/systmms/provisioner/internal/scm"
	"github.com/systmms/provisioner/internal/vault"
	"github.com/systmms/provisioner/internal/vcs"
	"github.com/systmms/provisioner/pkg/exec"
)

// VaultClient is what the commands use of the Vault client.
type VaultClient interface {
	provision.VaultSecrets
	CheckAuthenticated(ctx context.Context) error
}

// ConsulClient is what the commands use of the Consul client.
type ConsulClient interface {
	provision.ConsulSecrets
	CheckAuthenticated(ctx context.Context) error
}

// Factory builds the backend clients from loaded settings. Tests replace
// its fields with fakes.
type Factory struct {
	Session  func(s *config.Settings) (scm.Session, error)
	Vault    func(s *config.Settings, logger *logging.Logger) (VaultClient, error)
	Consul   func(s *config.Settings, logger *logging.Logger) (ConsulClient, error)
	Git      func(s *config.Settings, logger *logging.Logger) repo.Git
	Executor exec.CommandExecutor
}

// DefaultFactory wires the real GitLab, Vault, Consul and git clients.
func DefaultFactory() Factory {
	return Factory{
		Session: func(s *config.Settings) (scm.Session, error) {
			gl, err := scm.NewGitLab(scm.GitLabConfig{
				URL:        s.GitLab.URL,
				Token:      s.GitLab.Token,
				Timeout:    s.HTTPTimeout(),
				SkipVerify: s.GitLab.InsecureSkipVerify,
			})
			if err != nil {
				return nil, err
			}
			return gl, nil
		},
		Vault: func(s *config.Settings, logger *logging.Logger) (VaultClient, error) {
			client, err := vault.New(vault.Dial(vault.ClientConfig{
				Address:    s.Vault.URL,
				Token:      s.Vault.Token,
				Timeout:    s.HTTPTimeout(),
				SkipVerify: s.Vault.InsecureSkipVerify,
			}), logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Consul: func(s *config.Settings, logger *logging.Logger) (ConsulClient, error) {
			backend, err := consul.NewAPIBackend(consul.ClientConfig{
				Address:    s.Consul.URL,
				Token:      s.Consul.Token,
				Timeout:    s.HTTPTimeout(),
				SkipVerify: s.Consul.InsecureSkipVerify,
			})
			if err != nil {
				return nil, err
			}
			return consul.New(backend, logger), nil
		},
		Git: func(s *config.Settings, logger *logging.Logger) repo.Git {
			return vcs.New(exec.DefaultExecutor(), vcs.Identity{
				Name:  s.GitLab.Username,
				Email: s.GitLab.Username + "@" + s.GitLab.Host,
			}, logger)
		},
		Executor: exec.DefaultExecutor(),
	}
}

// load reads the configuration and runs the given requirement checks.
func load(cfg *config.Config, checks ...func(*config.Settings) error) error {
	if err := cfg.Load(); err != nil {
		return err
	}
	for _, check := range checks {
		if err := check(cfg.Settings); err != nil {
			return err
		}
	}
	return nil
}
