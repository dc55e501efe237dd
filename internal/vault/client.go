// Package vault issues AppRole credentials and stores namespace secrets in a
// Vault KV version 1 mount.
package vault

import (
	"context"
	"errors"
	"fmt"

	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/systmms/provisioner/internal/logging"
	"github.com/systmms/provisioner/internal/manifest"
)

// Client provisions policies, AppRoles and KV secrets.
type Client struct {
	connect Connector
	backend Backend
	logger  *logging.Logger
}

// New opens the first session through connect.
func New(connect Connector, logger *logging.Logger) (*Client, error) {
	backend, err := connect()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{connect: connect, backend: backend, logger: logger}, nil
}

// CheckAuthenticated verifies the session token.
func (c *Client) CheckAuthenticated(ctx context.Context) error {
	if err := c.backend.LookupSelf(ctx); err != nil {
		if dserrors.IsAuth(err) {
			return err
		}
		return dserrors.AuthError{Backend: "vault", Err: err}
	}
	return nil
}

// UpsertPolicy overwrites the ACL policy name with rules. Failures are
// logged and otherwise ignored.
func (c *Client) UpsertPolicy(ctx context.Context, name, rules string) {
	if err := c.backend.PutPolicy(ctx, name, rules); err != nil {
		c.logger.Error("Error creating policy %s: %v", name, err)
	}
}

func rolePath(role string) string {
	return "auth/approle/role/" + role
}

// GetOrCreateRole returns the role id of roleName, creating the role bound
// to policyName when it does not exist. An existing role keeps its policies.
func (c *Client) GetOrCreateRole(ctx context.Context, roleName, policyName string) (string, error) {
	roleID, err := c.readRoleID(ctx, roleName)
	if err == nil {
		return roleID, nil
	}
	if !errors.Is(err, ErrPathNotFound) {
		return "", err
	}

	c.logger.Info("Vault role %s does not exist, creating it", roleName)
	_, err = c.backend.Write(ctx, rolePath(roleName), map[string]interface{}{
		"token_policies": []string{policyName},
		"token_type":     "service",
	})
	if err != nil {
		return "", fmt.Errorf("failed to create role %s: %w", roleName, err)
	}

	return c.readRoleID(ctx, roleName)
}

func (c *Client) readRoleID(ctx context.Context, roleName string) (string, error) {
	data, err := c.backend.Read(ctx, rolePath(roleName)+"/role-id")
	if err != nil {
		return "", err
	}
	roleID, ok := data["role_id"].(string)
	if !ok || roleID == "" {
		return "", fmt.Errorf("role %s returned no role_id", roleName)
	}
	return roleID, nil
}

// IssueCredentialAndLogin generates a one-time secret id for roleName and
// logs in with it. The client token is only used to prove the pair works.
func (c *Client) IssueCredentialAndLogin(ctx context.Context, roleName, roleID string) (secretID, clientToken string, err error) {
	resp, err := c.backend.Write(ctx, rolePath(roleName)+"/secret-id", nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate secret id for %s: %w", roleName, err)
	}
	secretID, _ = resp.Data["secret_id"].(string)
	if secretID == "" {
		return "", "", fmt.Errorf("role %s returned no secret_id", roleName)
	}

	resp, err = c.backend.Write(ctx, "auth/approle/login", map[string]interface{}{
		"role_id":   roleID,
		"secret_id": secretID,
	})
	if err != nil {
		return "", "", fmt.Errorf("approle login for %s failed: %w", roleName, err)
	}
	if resp.ClientToken == "" {
		return "", "", fmt.Errorf("approle login for %s returned no token", roleName)
	}

	c.logger.Info("Vault client token: %s", logging.Secret(resp.ClientToken))
	return secretID, resp.ClientToken, nil
}

// GenerateEnvironmentSecret prepares the AppRole of group in environment and
// renders the vault-<group> Secret carrying its credential pair.
func (c *Client) GenerateEnvironmentSecret(ctx context.Context, group, environment, namespace string) (string, error) {
	policyName := fmt.Sprintf("%s_%s_policy", group, environment)
	rules, err := manifest.VaultPolicyJSON(group, environment)
	if err != nil {
		return "", err
	}
	c.UpsertPolicy(ctx, policyName, rules)

	roleName := fmt.Sprintf("%s_%s_role", group, environment)
	roleID, err := c.GetOrCreateRole(ctx, roleName, policyName)
	if err != nil {
		return "", err
	}

	secretID, _, err := c.IssueCredentialAndLogin(ctx, roleName, roleID)
	if err != nil {
		return "", err
	}

	return manifest.MarshalString(manifest.VaultSecret(group, namespace, roleID, secretID))
}

// WriteOrMergeSecret sets key to value in the KV v1 map at mount/path,
// keeping every other key. It reconnects first and is not atomic: a
// concurrent writer between the read and the write loses its update.
func (c *Client) WriteOrMergeSecret(ctx context.Context, mount, path, key, value string) error {
	backend, err := c.connect()
	if err != nil {
		return err
	}
	c.backend = backend

	full := mount + "/" + path
	data, err := backend.Read(ctx, full)
	switch {
	case errors.Is(err, ErrPathNotFound):
		c.logger.Info("No existing data found at %s, initializing new secret", full)
		data = map[string]interface{}{}
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", full, err)
	}

	merged := make(map[string]interface{}, len(data)+1)
	for k, v := range data {
		merged[k] = v
	}
	merged[key] = value

	if _, err := backend.Write(ctx, full, merged); err != nil {
		return fmt.Errorf("failed to write %s: %w", full, err)
	}
	c.logger.Info("Secret written to %s", full)
	return nil
}
