package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/provisioner/internal/credstore"
	"github.com/systmms/provisioner/internal/logging"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

type fakeKeyring map[string]string

func (f fakeKeyring) Get(account string) (string, error) {
	if v, ok := f[account]; ok {
		return v, nil
	}
	return "", credstore.ErrNotFound
}
func (f fakeKeyring) Set(account, token string) error { f[account] = token; return nil }
func (f fakeKeyring) Delete(account string) error     { delete(f, account); return nil }

func newConfig(t *testing.T, env map[string]string) *Config {
	t.Helper()
	return &Config{
		EnvFile:   writeFile(t, ".env", ""),
		Logger:    logging.Discard(),
		LookupEnv: envMap(env),
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t, nil)
	require.NoError(t, cfg.Load())

	s := cfg.Settings
	assert.Equal(t, 453, s.Layout.CodeGroupID)
	assert.Equal(t, 452, s.Layout.ChartGroupID)
	assert.Equal(t, 2021, s.Layout.ImageRepoID)
	assert.Equal(t, 827, s.Layout.TemplateRepoID)
	assert.Equal(t, "development", s.Layout.MainGroup)
	assert.Equal(t, "devops", s.Layout.DevOpsGroup)
	assert.Equal(t, []string{"develop", "master"}, s.Layout.Branches)
	assert.Equal(t, "devops_kv", s.Vault.KVMount)
	assert.Equal(t, 30*time.Second, s.HTTPTimeout())

	cp := s.Layout.ContainerExpiration
	assert.True(t, cp.Enabled)
	assert.Equal(t, "7d", cp.Cadence)
	assert.Equal(t, 5, cp.KeepN)
	assert.Equal(t, "dev-*, prod-*", cp.NameRegexKeep)
	assert.Equal(t, "30d", cp.OlderThan)
	assert.Equal(t, "dev-*, prod-*", cp.NameRegex)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t, map[string]string{
		"CI_SUBGROUP_NAME": "  Payments ",
		"CI_PROJECT_NAME":  "Ledger",
		"CI_SERVER_URL":    "https://gitlab.example.com/",
	})
	cfg.Path = writeFile(t, "provisioner.yaml", `
gitlab:
  url: https://old.example.com
project:
  subgroup: ignored
  name: ignored
deploy:
  namespace: Payments-NS
  cluster_type: DEV|prod
`)
	require.NoError(t, cfg.Load())

	s := cfg.Settings
	assert.Equal(t, "payments", s.Project.Subgroup)
	assert.Equal(t, "ledger", s.Project.Name)
	assert.Equal(t, "https://gitlab.example.com", s.GitLab.URL)
	assert.Equal(t, "gitlab.example.com", s.GitLab.Host)
	assert.Equal(t, "payments-ns", s.Deploy.Namespace)
	assert.Equal(t, []string{"dev", "prod"}, s.EnvBranches())
}

func TestLoad_DotEnvBelowProcessEnvironment(t *testing.T) {
	t.Parallel()

	cfg := &Config{
		EnvFile: writeFile(t, ".env", "CI_SUBGROUP_NAME=fromfile\nCI_PROJECT_NAME=fromfile\n"),
		LookupEnv: envMap(map[string]string{
			"CI_PROJECT_NAME": "fromenv",
		}),
	}
	require.NoError(t, cfg.Load())

	assert.Equal(t, "fromfile", cfg.Settings.Project.Subgroup)
	assert.Equal(t, "fromenv", cfg.Settings.Project.Name)
}

func TestLoad_KeyringFillsMissingTokens(t *testing.T) {
	t.Parallel()

	cfg := newConfig(t, map[string]string{"CI_VAULT_TOKEN": "from-env"})
	cfg.Keyring = fakeKeyring{
		credstore.GitLab: "glpat-keyring",
		credstore.Vault:  "from-keyring",
	}
	require.NoError(t, cfg.Load())

	assert.Equal(t, "glpat-keyring", cfg.Settings.GitLab.Token)
	assert.Equal(t, "from-env", cfg.Settings.Vault.Token)
	assert.Empty(t, cfg.Settings.Consul.Token)
}

func TestLoad_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing file",
			path:    "/nonexistent/provisioner.yaml",
			wantErr: "configuration file not found",
		},
		{
			name:    "bad yaml",
			path:    "bad",
			wantErr: "invalid YAML syntax",
		},
		{
			name:    "malformed ports",
			env:     map[string]string{"CD_HELM_PORT_POD_SVC_MGMT": "8080|80"},
			wantErr: "invalid configuration",
		},
		{
			name:    "unknown mode",
			env:     map[string]string{"CI_PROJECT_MODE": "TRIPLE"},
			wantErr: "invalid configuration",
		},
		{
			name:    "vault url without scheme",
			env:     map[string]string{"CI_VAULT_URL": "vault.example.com"},
			wantErr: "invalid configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := newConfig(t, tt.env)
			cfg.Path = tt.path
			if tt.path == "bad" {
				cfg.Path = writeFile(t, "bad.yaml", "project: [[[\n")
			}

			err := cfg.Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Nil(t, cfg.Settings)
		})
	}
}

func TestLoad_ExplicitEnvFileMustExist(t *testing.T) {
	t.Parallel()

	cfg := &Config{EnvFile: "/nonexistent/.env", LookupEnv: envMap(nil)}
	err := cfg.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read env file")
}

func TestRequire(t *testing.T) {
	t.Parallel()

	s := Defaults()
	assert.ErrorContains(t, s.RequireProject(), "group or project name")
	assert.ErrorContains(t, s.RequireGitLab(), "CI_SERVER_URL")
	assert.ErrorContains(t, s.RequireDeploy(), "CD_HELM_NAMESPACE")

	s.GitLab.URL = "https://gitlab.example.com"
	assert.ErrorContains(t, s.RequireGitLab(), "provisioner login gitlab")

	s.GitLab.Token = "t"
	s.Project.Subgroup, s.Project.Name = "payments", "ledger"
	s.Deploy.Namespace = "payments-ns"
	assert.ErrorContains(t, s.RequireDeploy(), "CD_CLUSTER_TYPE")

	s.Deploy.ClusterType = "dev|prod"
	assert.NoError(t, s.RequireGitLab())
	assert.NoError(t, s.RequireProject())
	assert.NoError(t, s.RequireDeploy())
	assert.Error(t, s.RequireVault())
	assert.Error(t, s.RequireConsul())
}

func TestSettings_Secrets(t *testing.T) {
	t.Parallel()

	s := Defaults()
	s.GitLab.Token = "glpat"
	s.Consul.Token = "consul"
	assert.ElementsMatch(t, []string{"glpat", "consul"}, s.Secrets())
}
