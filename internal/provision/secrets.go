package provision

import (
	"context"
	"errors"

	"github.com/systmms/provisioner/internal/config"
	"github.com/systmms/provisioner/internal/manifest"
	"github.com/systmms/provisioner/internal/secure"
)

// SecretPath is the KV path of the namespace secrets of one deployment
// branch.
func SecretPath(branch string) string {
	return branch + "/kubernetes/namespace"
}

// provisionSecrets mints the Consul, Vault and registry secrets of the
// namespace for every deployment branch and stores them, joined as one
// multi-document YAML stream, in the KV mount. Branches are skipped when the
// provisioning project already has a CI variable for the namespace.
func (w *Workflow) provisionSecrets(ctx context.Context) error {
	s := w.settings
	if w.vault == nil || w.consul == nil {
		return w.handle(result(StepSecret, Failed, errors.New("secret backends not configured"), "Namespace secrets"))
	}

	project, err := w.session.GetProject(ctx, s.ProvisioningProjectPath())
	if err != nil {
		return w.handle(result(StepSecret, Failed, err, "Failed to open %s", s.ProvisioningProjectPath()))
	}
	vars, err := w.session.ListVariables(ctx, project.ID)
	if err != nil {
		return w.handle(result(StepSecret, Failed, err, "Failed to list variables of %s", s.ProvisioningProjectPath()))
	}

	key := s.NamespaceKey()
	existing := make(map[string]bool, len(vars))
	for _, v := range vars {
		existing[v.Key] = true
	}

	for _, branch := range s.EnvBranches() {
		var res StepResult
		if existing[key] {
			res = result(StepSecret, Skipped, nil, "Variable %s already exists, no secrets minted for %s", key, branch)
		} else {
			res = w.namespaceSecret(ctx, branch, key)
		}
		if err := w.handle(res); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workflow) namespaceSecret(ctx context.Context, branch, key string) StepResult {
	s := w.settings
	group, namespace := s.Project.Subgroup, s.Deploy.Namespace

	consulDoc, err := w.consul.GenerateGroupSecret(ctx, group, namespace)
	if err != nil {
		return result(StepSecret, Failed, err, "Consul secret for %s", branch).on("consul")
	}

	var vaultDoc string
	if env, ok := config.EnvironmentFor(branch); ok {
		vaultDoc, err = w.vault.GenerateEnvironmentSecret(ctx, group, env, namespace)
		if err != nil {
			return result(StepSecret, Failed, err, "Vault secret for %s", branch).on("vault")
		}
	} else {
		w.logger.Warn("Branch %s is neither a dev nor a prod branch, no Vault secret", branch)
	}

	regcred, err := manifest.RegistryCredential(s.GitLab.Host, s.GitLab.Username, s.GitLab.Password, namespace)
	if err != nil {
		return result(StepSecret, Failed, err, "Registry credential for %s", branch)
	}
	regcredDoc, err := manifest.MarshalString(regcred)
	if err != nil {
		return result(StepSecret, Failed, err, "Registry credential for %s", branch)
	}

	blob := secure.NewBlob(manifest.JoinDocuments(consulDoc, vaultDoc, regcredDoc))
	defer blob.Destroy()

	err = blob.Reveal(func(value string) error {
		return w.vault.WriteOrMergeSecret(ctx, s.Vault.KVMount, SecretPath(branch), key, value)
	})
	if err != nil {
		return result(StepSecret, Failed, err, "Failed to store secrets for %s", branch).on("vault")
	}
	return result(StepSecret, Done, nil, "Secrets for %s written to %s/%s", branch, s.Vault.KVMount, SecretPath(branch))
}
