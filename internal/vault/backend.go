package vault

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	dserrors "github.com/systmms/provisioner/internal/errors"
)

// ErrPathNotFound is returned by Backend.Read when nothing is stored at the
// path.
var ErrPathNotFound = errors.New("vault path not found")

// Response is the part of a Vault write response the provisioner reads.
type Response struct {
	Data        map[string]interface{}
	ClientToken string
}

// Backend is the slice of the Vault HTTP API used by Client.
type Backend interface {
	Read(ctx context.Context, path string) (map[string]interface{}, error)
	Write(ctx context.Context, path string, data map[string]interface{}) (*Response, error)
	PutPolicy(ctx context.Context, name, rules string) error
	LookupSelf(ctx context.Context) error
}

// Connector opens a new authenticated session.
type Connector func() (Backend, error)

// ClientConfig holds configuration for creating a Vault session.
type ClientConfig struct {
	Address    string
	Token      string
	Timeout    time.Duration
	SkipVerify bool
}

// Dial returns a Connector backed by the official Vault API client.
func Dial(cfg ClientConfig) Connector {
	return func() (Backend, error) {
		return NewAPIBackend(cfg)
	}
}

// APIBackend implements Backend with github.com/hashicorp/vault/api.
type APIBackend struct {
	client *vaultapi.Client
}

// NewAPIBackend creates a client for cfg.Address authenticated with cfg.Token.
func NewAPIBackend(cfg ClientConfig) (*APIBackend, error) {
	config := vaultapi.DefaultConfig()
	if config.Error != nil {
		return nil, fmt.Errorf("failed to read vault environment: %w", config.Error)
	}
	config.Address = cfg.Address
	if cfg.Timeout > 0 {
		config.Timeout = cfg.Timeout
	}
	if cfg.SkipVerify {
		if err := config.ConfigureTLS(&vaultapi.TLSConfig{Insecure: true}); err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}

	client, err := vaultapi.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create vault client: %w", err)
	}
	if cfg.Token == "" {
		return nil, dserrors.AuthError{Backend: "vault", Err: errors.New("token cannot be empty")}
	}
	client.SetToken(cfg.Token)

	return &APIBackend{client: client}, nil
}

func (b *APIBackend) Read(ctx context.Context, path string) (map[string]interface{}, error) {
	secret, err := b.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, classify(err)
	}
	// The API client maps a 404 to a nil secret.
	if secret == nil || secret.Data == nil {
		return nil, ErrPathNotFound
	}
	return secret.Data, nil
}

func (b *APIBackend) Write(ctx context.Context, path string, data map[string]interface{}) (*Response, error) {
	secret, err := b.client.Logical().WriteWithContext(ctx, path, data)
	if err != nil {
		return nil, classify(err)
	}
	resp := &Response{}
	if secret != nil {
		resp.Data = secret.Data
		if secret.Auth != nil {
			resp.ClientToken = secret.Auth.ClientToken
		}
	}
	return resp, nil
}

func (b *APIBackend) PutPolicy(ctx context.Context, name, rules string) error {
	return classify(b.client.Sys().PutPolicyWithContext(ctx, name, rules))
}

func (b *APIBackend) LookupSelf(ctx context.Context) error {
	_, err := b.client.Auth().Token().LookupSelfWithContext(ctx)
	return classify(err)
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	var respErr *vaultapi.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %v", ErrPathNotFound, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return dserrors.AuthError{Backend: "vault", Err: err}
		}
	}
	return err
}

var _ Backend = (*APIBackend)(nil)
