package consul

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	consulapi "github.com/hashicorp/consul/api"
	dserrors "github.com/systmms/provisioner/internal/errors"
)

// Policy is a Consul ACL policy. Rules is only set on created policies;
// list results carry no rule body.
type Policy struct {
	ID    string
	Name  string
	Rules string
}

// Token is a Consul ACL token.
type Token struct {
	AccessorID  string
	SecretID    string
	Description string
	PolicyIDs   []string
}

// Backend is the slice of the Consul ACL API used by Client.
type Backend interface {
	ListPolicies(ctx context.Context) ([]Policy, error)
	CreatePolicy(ctx context.Context, name, rules string) (*Policy, error)
	ListTokens(ctx context.Context) ([]Token, error)
	CreateToken(ctx context.Context, policyIDs []string, description string) (*Token, error)
	ReadSelf(ctx context.Context) error
}

// ClientConfig holds configuration for creating a Consul client.
type ClientConfig struct {
	Address    string
	Token      string
	Timeout    time.Duration
	SkipVerify bool
}

// APIBackend implements Backend with github.com/hashicorp/consul/api.
type APIBackend struct {
	acl *consulapi.ACL
}

// NewAPIBackend creates an ACL client for cfg.Address. The address may carry
// an http:// or https:// scheme.
func NewAPIBackend(cfg ClientConfig) (*APIBackend, error) {
	if cfg.Token == "" {
		return nil, dserrors.AuthError{Backend: "consul", Err: errors.New("token cannot be empty")}
	}

	config := consulapi.DefaultConfig()
	config.Address = cfg.Address
	config.Token = cfg.Token
	config.TLSConfig.InsecureSkipVerify = cfg.SkipVerify

	httpClient, err := consulapi.NewHttpClient(config.Transport, config.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to configure consul transport: %w", err)
	}
	if cfg.Timeout > 0 {
		httpClient.Timeout = cfg.Timeout
	}
	config.HttpClient = httpClient

	client, err := consulapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &APIBackend{acl: client.ACL()}, nil
}

func query(ctx context.Context) *consulapi.QueryOptions {
	return (&consulapi.QueryOptions{}).WithContext(ctx)
}

func write(ctx context.Context) *consulapi.WriteOptions {
	return (&consulapi.WriteOptions{}).WithContext(ctx)
}

func (b *APIBackend) ListPolicies(ctx context.Context) ([]Policy, error) {
	entries, _, err := b.acl.PolicyList(query(ctx))
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Policy, 0, len(entries))
	for _, e := range entries {
		out = append(out, Policy{ID: e.ID, Name: e.Name})
	}
	return out, nil
}

func (b *APIBackend) CreatePolicy(ctx context.Context, name, rules string) (*Policy, error) {
	created, _, err := b.acl.PolicyCreate(&consulapi.ACLPolicy{Name: name, Rules: rules}, write(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return &Policy{ID: created.ID, Name: created.Name, Rules: created.Rules}, nil
}

func (b *APIBackend) ListTokens(ctx context.Context) ([]Token, error) {
	entries, _, err := b.acl.TokenList(query(ctx))
	if err != nil {
		return nil, classify(err)
	}
	out := make([]Token, 0, len(entries))
	for _, e := range entries {
		out = append(out, Token{
			AccessorID:  e.AccessorID,
			SecretID:    e.SecretID,
			Description: e.Description,
			PolicyIDs:   policyIDs(e.Policies),
		})
	}
	return out, nil
}

func (b *APIBackend) CreateToken(ctx context.Context, ids []string, description string) (*Token, error) {
	links := make([]*consulapi.ACLTokenPolicyLink, 0, len(ids))
	for _, id := range ids {
		links = append(links, &consulapi.ACLTokenPolicyLink{ID: id})
	}
	created, _, err := b.acl.TokenCreate(&consulapi.ACLToken{
		Description: description,
		Policies:    links,
	}, write(ctx))
	if err != nil {
		return nil, classify(err)
	}
	return &Token{
		AccessorID:  created.AccessorID,
		SecretID:    created.SecretID,
		Description: created.Description,
		PolicyIDs:   policyIDs(created.Policies),
	}, nil
}

func (b *APIBackend) ReadSelf(ctx context.Context) error {
	_, _, err := b.acl.TokenReadSelf(query(ctx))
	return classify(err)
}

func policyIDs(links []*consulapi.ACLTokenPolicyLink) []string {
	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.ID)
	}
	return ids
}

func classify(err error) error {
	var statusErr consulapi.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusForbidden || statusErr.Code == http.StatusUnauthorized {
			return dserrors.AuthError{Backend: "consul", Err: err}
		}
	}
	return err
}

var _ Backend = (*APIBackend)(nil)
