package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	dserrors "github.com/systmms/provisioner/internal/errors"
)

// DefaultEnvFile is read when present and EnvFile is unset.
const DefaultEnvFile = ".env"

// binding maps a pipeline variable onto a settings field.
type binding struct {
	name   string
	target func(*Settings) *string
}

// The variable names are the ones the CI pipeline already exports.
var bindings = []binding{
	{"CI_SERVER_URL", func(s *Settings) *string { return &s.GitLab.URL }},
	{"CI_SERVER_HOST", func(s *Settings) *string { return &s.GitLab.Host }},
	{"CI_GITLAB_TOKEN_NAME", func(s *Settings) *string { return &s.GitLab.TokenName }},
	{"CI_GITLAB_TOKEN", func(s *Settings) *string { return &s.GitLab.Token }},
	{"CI_GITLAB_USERNAME", func(s *Settings) *string { return &s.GitLab.Username }},
	{"CI_GITLAB_PASSWORD", func(s *Settings) *string { return &s.GitLab.Password }},
	{"CI_VAULT_URL", func(s *Settings) *string { return &s.Vault.URL }},
	{"CI_VAULT_TOKEN", func(s *Settings) *string { return &s.Vault.Token }},
	{"CI_CONSUL_URL", func(s *Settings) *string { return &s.Consul.URL }},
	{"CI_CONSUL_TOKEN", func(s *Settings) *string { return &s.Consul.Token }},
	{"CI_SUBGROUP_NAME", func(s *Settings) *string { return &s.Project.Subgroup }},
	{"CI_PROJECT_NAME", func(s *Settings) *string { return &s.Project.Name }},
	{"CI_PROJECT_CREATION", func(s *Settings) *string { return &s.Project.Creation }},
	{"CI_BRANCHING_TYPE", func(s *Settings) *string { return &s.Project.BranchingType }},
	{"CI_PROJECT_TYPE", func(s *Settings) *string { return &s.Project.Type }},
	{"CI_PROJECT_TYPE_BACKEND_DMZ", func(s *Settings) *string { return &s.Project.TypeBackendDMZ }},
	{"CI_PROJECT_MODE", func(s *Settings) *string { return &s.Project.Mode }},
	{"CI_PROJECT_MM_MODULE_NAME", func(s *Settings) *string { return &s.Project.ModuleName }},
	{"CI_PROJECT_MM_CODE_EXISTS", func(s *Settings) *string { return &s.Project.ModuleCodeExists }},
	{"CI_APPLICATION_TYPE", func(s *Settings) *string { return &s.Project.ApplicationType }},
	{"CI_APPLICATION_VERSION", func(s *Settings) *string { return &s.Project.ApplicationVersion }},
	{"CI_RELEASE_TYPE", func(s *Settings) *string { return &s.Project.ReleaseType }},
	{"CI_CODE_STYLE", func(s *Settings) *string { return &s.Project.CodeStyle }},
	{"CI_CODE_CHECK_SNYK", func(s *Settings) *string { return &s.Project.CodeCheckSnyk }},
	{"CI_PROJECT_TEST_STAGE", func(s *Settings) *string { return &s.Project.TestStage }},
	{"CD_HELM_NAMESPACE", func(s *Settings) *string { return &s.Deploy.Namespace }},
	{"CD_HELM_PORT_POD_SVC_MGMT", func(s *Settings) *string { return &s.Deploy.Ports }},
	{"CD_REPLICA_COUNT", func(s *Settings) *string { return &s.Deploy.Replicas }},
	{"CD_HELM_DOMAIN", func(s *Settings) *string { return &s.Deploy.Domain }},
	{"CD_CLUSTER_TYPE", func(s *Settings) *string { return &s.Deploy.ClusterType }},
	{"CI_ACCESS_MAINTAINER", func(s *Settings) *string { return &s.Access.Maintainers }},
	{"CI_ACCESS_DEVELOPER", func(s *Settings) *string { return &s.Access.Developers }},
}

// EnvNames lists every environment variable the provisioner reads.
func EnvNames() []string {
	names := make([]string, 0, len(bindings))
	for _, b := range bindings {
		names = append(names, b.name)
	}
	return names
}

// environment merges the .env file under the process environment.
func (c *Config) environment() (func(string) (string, bool), error) {
	lookup := c.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}

	path := c.EnvFile
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	dotenv, err := godotenv.Read(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return lookup, nil
		}
		return nil, dserrors.ConfigError{
			Field:      "env-file",
			Value:      path,
			Message:    "cannot read env file: " + err.Error(),
			Suggestion: "Use KEY=value lines, one per variable",
		}
	}

	return func(name string) (string, bool) {
		if v, ok := lookup(name); ok {
			return v, true
		}
		v, ok := dotenv[name]
		return v, ok
	}, nil
}

func applyEnv(s *Settings, lookup func(string) (string, bool)) {
	for _, b := range bindings {
		if v, ok := lookup(b.name); ok && strings.TrimSpace(v) != "" {
			*b.target(s) = v
		}
	}
}

// normalize applies the case folding the pipeline relies on: group, project,
// module, namespace, cluster and user names are matched lower-case.
func (s *Settings) normalize() {
	lower := func(v *string) { *v = strings.ToLower(strings.TrimSpace(*v)) }

	lower(&s.Project.Subgroup)
	lower(&s.Project.Name)
	lower(&s.Project.ModuleName)
	lower(&s.Deploy.Namespace)
	lower(&s.Deploy.ClusterType)
	lower(&s.Access.Maintainers)
	lower(&s.Access.Developers)

	s.GitLab.URL = strings.TrimRight(strings.TrimSpace(s.GitLab.URL), "/")
	if s.GitLab.Host == "" {
		s.GitLab.Host = hostOf(s.GitLab.URL)
	}
}
