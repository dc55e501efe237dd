package manifest

import (
	"encoding/json"
	"fmt"
)

type pathRule struct {
	Capabilities []string `json:"capabilities"`
}

type vaultPolicy struct {
	Path map[string]pathRule `json:"path"`
}

// VaultPolicyJSON grants list on secret/* and full access to the group's
// secrets for one environment, as an indented JSON policy document.
func VaultPolicyJSON(group, environment string) (string, error) {
	policy := vaultPolicy{
		Path: map[string]pathRule{
			"secret/*": {Capabilities: []string{"list"}},
			fmt.Sprintf("secret/%s/+/%s", group, environment): {
				Capabilities: []string{"read", "list", "update", "create", "delete"},
			},
		},
	}
	raw, err := json.MarshalIndent(policy, "", "    ")
	if err != nil {
		return "", fmt.Errorf("failed to encode vault policy: %w", err)
	}
	return string(raw), nil
}

// ConsulKeyPrefixRule is the HCL rule giving a group write access to its own
// key prefix.
func ConsulKeyPrefixRule(group string) string {
	return fmt.Sprintf(`key_prefix "%s/" { policy = "write" }`, group)
}
