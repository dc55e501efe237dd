// Package consul provisions Consul ACL policies and tokens. Both are looked
// up by their human-readable key (policy name, token description) and an
// existing record is returned as is, without comparing its body.
package consul

import (
	"context"
	"fmt"

	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/systmms/provisioner/internal/find"
	"github.com/systmms/provisioner/internal/logging"
	"github.com/systmms/provisioner/internal/manifest"
)

// Client provisions Consul ACL records.
type Client struct {
	backend Backend
	logger  *logging.Logger
}

func New(backend Backend, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{backend: backend, logger: logger}
}

// CheckAuthenticated reads the client's own token.
func (c *Client) CheckAuthenticated(ctx context.Context) error {
	if err := c.backend.ReadSelf(ctx); err != nil {
		if dserrors.IsAuth(err) {
			return err
		}
		return dserrors.AuthError{Backend: "consul", Err: err}
	}
	return nil
}

// GetPolicy returns the policy named exactly name, or nil.
func (c *Client) GetPolicy(ctx context.Context, name string) (*Policy, error) {
	policies, err := c.backend.ListPolicies(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list policies: %w", err)
	}
	p, ok := find.First(policies, func(p Policy) bool { return p.Name == name })
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// UpsertPolicy creates the policy unless one with the same name exists, in
// which case the existing one is returned unchanged.
func (c *Client) UpsertPolicy(ctx context.Context, name, rules string) (*Policy, error) {
	existing, err := c.GetPolicy(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		c.logger.Debug("Consul policy %s already exists", name)
		return existing, nil
	}

	created, err := c.backend.CreatePolicy(ctx, name, rules)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy %s: %w", name, err)
	}
	return created, nil
}

func (c *Client) ListTokens(ctx context.Context) ([]Token, error) {
	tokens, err := c.backend.ListTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// FindTokenByDescription returns the token described exactly description, or
// nil.
func (c *Client) FindTokenByDescription(ctx context.Context, description string) (*Token, error) {
	tokens, err := c.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := find.First(tokens, func(t Token) bool { return t.Description == description })
	if !ok {
		return nil, nil
	}
	return &t, nil
}

// UpsertToken creates a token bound to policyIDs unless one with the same
// description exists.
func (c *Client) UpsertToken(ctx context.Context, policyIDs []string, description string) (*Token, error) {
	existing, err := c.FindTokenByDescription(ctx, description)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		c.logger.Info("Token with description '%s' already exists", description)
		return existing, nil
	}

	created, err := c.backend.CreateToken(ctx, policyIDs, description)
	if err != nil {
		return nil, fmt.Errorf("failed to create token %s: %w", description, err)
	}
	return created, nil
}

// GenerateGroupSecret gives group write access to its key prefix and renders
// the consul-<group> Secret holding the group's token.
func (c *Client) GenerateGroupSecret(ctx context.Context, group, namespace string) (string, error) {
	policy, err := c.UpsertPolicy(ctx, group, manifest.ConsulKeyPrefixRule(group))
	if err != nil {
		return "", err
	}

	token, err := c.UpsertToken(ctx, []string{policy.ID}, group)
	if err != nil {
		return "", err
	}
	c.logger.Info("Consul client token: %s", logging.Secret(token.SecretID))

	return manifest.MarshalString(manifest.ConsulSecret(group, namespace, token.SecretID))
}
