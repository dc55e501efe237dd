package manifest

import (
	"encoding/json"
	"fmt"
)

const (
	SecretTypeOpaque           = "Opaque"
	SecretTypeDockerConfigJSON = "kubernetes.io/dockerconfigjson"

	// RegistryPort is the GitLab container registry port appended to the
	// registry host in docker credentials.
	RegistryPort = "4567"
)

// ObjectMeta is the subset of Kubernetes object metadata the provisioner sets.
type ObjectMeta struct {
	Name       string   `yaml:"name"`
	Namespace  string   `yaml:"namespace,omitempty"`
	Finalizers []string `yaml:"finalizers,omitempty"`
}

// Secret is a core/v1 Secret. Data values are already base64 encoded.
type Secret struct {
	APIVersion string            `yaml:"apiVersion"`
	Kind       string            `yaml:"kind"`
	Metadata   ObjectMeta        `yaml:"metadata"`
	Type       string            `yaml:"type"`
	Data       map[string]string `yaml:"data"`
}

// Namespace is a core/v1 Namespace.
type Namespace struct {
	APIVersion string     `yaml:"apiVersion"`
	Kind       string     `yaml:"kind"`
	Metadata   ObjectMeta `yaml:"metadata"`
}

// NewNamespace returns the Namespace manifest for name.
func NewNamespace(name string) Namespace {
	return Namespace{
		APIVersion: "v1",
		Kind:       "Namespace",
		Metadata:   ObjectMeta{Name: name},
	}
}

func opaqueSecret(name, namespace string, data map[string]string) Secret {
	encoded := make(map[string]string, len(data))
	for k, v := range data {
		encoded[k] = b64(v)
	}
	return Secret{
		APIVersion: "v1",
		Kind:       "Secret",
		Metadata:   ObjectMeta{Name: name, Namespace: namespace},
		Type:       SecretTypeOpaque,
		Data:       encoded,
	}
}

// ConsulSecret carries a Consul ACL token for a group as CONSUL_TOKEN.
func ConsulSecret(group, namespace, token string) Secret {
	return opaqueSecret("consul-"+group, namespace, map[string]string{
		"CONSUL_TOKEN": token,
	})
}

// VaultSecret carries the AppRole credential pair for a group.
func VaultSecret(group, namespace, roleID, secretID string) Secret {
	return opaqueSecret("vault-"+group, namespace, map[string]string{
		"VAULT_ROLE_ID":   roleID,
		"VAULT_SECRET_ID": secretID,
	})
}

type dockerAuth struct {
	Auth string `json:"auth"`
}

type dockerConfig struct {
	Auths map[string]dockerAuth `json:"auths"`
}

// RegistryCredential returns the "regcred" pull secret for the GitLab
// registry at server:4567.
func RegistryCredential(server, username, password, namespace string) (Secret, error) {
	cfg := dockerConfig{
		Auths: map[string]dockerAuth{
			server + ":" + RegistryPort: {Auth: b64(username + ":" + password)},
		},
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return Secret{}, fmt.Errorf("failed to encode docker config: %w", err)
	}

	return Secret{
		APIVersion: "v1",
		Kind:       "Secret",
		Metadata:   ObjectMeta{Name: "regcred", Namespace: namespace},
		Type:       SecretTypeDockerConfigJSON,
		Data:       map[string]string{".dockerconfigjson": b64(string(raw))},
	}, nil
}
