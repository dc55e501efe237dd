package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var schemaJSON []byte

// Validate checks the settings against the embedded JSON schema and the
// rules the schema cannot express.
func (s *Settings) Validate() error {
	doc, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal settings for validation: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaJSON),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return dserrors.ConfigError{
			Message:    "invalid configuration:\n  - " + strings.Join(problems, "\n  - "),
			Suggestion: "Check the CI_* and CD_* variables passed by the pipeline",
		}
	}

	return nil
}

// RequireProject reports a ConfigError when the subgroup or project name is
// missing.
func (s *Settings) RequireProject() error {
	if s.Project.Subgroup == "" || s.Project.Name == "" {
		return dserrors.ConfigError{
			Field:      "project",
			Message:    "group or project name can not be empty",
			Suggestion: "Set CI_SUBGROUP_NAME and CI_PROJECT_NAME",
		}
	}
	return nil
}

// RequireGitLab reports a ConfigError when the GitLab URL or token is
// missing.
func (s *Settings) RequireGitLab() error {
	return requireBackend("gitlab", s.GitLab.URL, s.GitLab.Token, "CI_SERVER_URL", "CI_GITLAB_TOKEN")
}

func (s *Settings) RequireVault() error {
	return requireBackend("vault", s.Vault.URL, s.Vault.Token, "CI_VAULT_URL", "CI_VAULT_TOKEN")
}

func (s *Settings) RequireConsul() error {
	return requireBackend("consul", s.Consul.URL, s.Consul.Token, "CI_CONSUL_URL", "CI_CONSUL_TOKEN")
}

// RequireDeploy checks the inputs every secret and manifest needs.
func (s *Settings) RequireDeploy() error {
	if s.Deploy.Namespace == "" {
		return dserrors.ConfigError{
			Field:      "deploy.namespace",
			Message:    "namespace is required",
			Suggestion: "Set CD_HELM_NAMESPACE",
		}
	}
	if len(s.EnvBranches()) == 0 {
		return dserrors.ConfigError{
			Field:      "deploy.cluster_type",
			Message:    "no deployment branches configured",
			Suggestion: "Set CD_CLUSTER_TYPE, for example dev|prod",
		}
	}
	return nil
}

func requireBackend(backend, url, token, urlVar, tokenVar string) error {
	if url == "" {
		return dserrors.ConfigError{
			Field:      backend + ".url",
			Message:    backend + " URL is not configured",
			Suggestion: "Set " + urlVar,
		}
	}
	if token == "" {
		return dserrors.ConfigError{
			Field:      backend + ".token",
			Message:    backend + " token is not configured",
			Suggestion: fmt.Sprintf("Set %s or run 'provisioner login %s'", tokenVar, backend),
		}
	}
	return nil
}
