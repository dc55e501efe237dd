package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dserrors "github.com/systmms/provisioner/internal/errors"
	"github.com/systmms/provisioner/internal/logging"
	"gopkg.in/yaml.v3"
)

// fakeVault keeps policies, AppRoles and KV data in memory and behaves like
// the Vault endpoints the client calls.
type fakeVault struct {
	policies map[string]string
	roles    map[string][]string // role name -> token_policies
	kv       map[string]map[string]interface{}

	writes    []string
	sessions  int
	putErr    error
	lookupErr error
	readErr   error
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		policies: map[string]string{},
		roles:    map[string][]string{},
		kv:       map[string]map[string]interface{}{},
	}
}

func (f *fakeVault) connector() Connector {
	return func() (Backend, error) {
		f.sessions++
		return f, nil
	}
}

func (f *fakeVault) Read(_ context.Context, path string) (map[string]interface{}, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	if strings.HasPrefix(path, "auth/approle/role/") && strings.HasSuffix(path, "/role-id") {
		role := strings.TrimSuffix(strings.TrimPrefix(path, "auth/approle/role/"), "/role-id")
		if _, ok := f.roles[role]; !ok {
			return nil, ErrPathNotFound
		}
		return map[string]interface{}{"role_id": "id-" + role}, nil
	}
	data, ok := f.kv[path]
	if !ok {
		return nil, ErrPathNotFound
	}
	out := map[string]interface{}{}
	for k, v := range data {
		out[k] = v
	}
	return out, nil
}

func (f *fakeVault) Write(_ context.Context, path string, data map[string]interface{}) (*Response, error) {
	f.writes = append(f.writes, path)
	switch {
	case path == "auth/approle/login":
		return &Response{ClientToken: "hvs.client-" + data["role_id"].(string)}, nil
	case strings.HasSuffix(path, "/secret-id"):
		return &Response{Data: map[string]interface{}{"secret_id": fmt.Sprintf("sid-%d", len(f.writes))}}, nil
	case strings.HasPrefix(path, "auth/approle/role/"):
		role := strings.TrimPrefix(path, "auth/approle/role/")
		f.roles[role] = data["token_policies"].([]string)
		return &Response{}, nil
	default:
		f.kv[path] = data
		return &Response{}, nil
	}
}

func (f *fakeVault) PutPolicy(_ context.Context, name, rules string) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.policies[name] = rules
	return nil
}

func (f *fakeVault) LookupSelf(context.Context) error { return f.lookupErr }

func newTestClient(t *testing.T, f *fakeVault) (*Client, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := logging.New(false, true)
	logger.SetOutput(&buf)
	c, err := New(f.connector(), logger)
	require.NoError(t, err)
	return c, &buf
}

func TestUpsertPolicy_Overwrites(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	c.UpsertPolicy(ctx, "payments_dev_policy", "first")
	c.UpsertPolicy(ctx, "payments_dev_policy", "second")

	assert.Len(t, f.policies, 1)
	assert.Equal(t, "second", f.policies["payments_dev_policy"])
}

func TestUpsertPolicy_ErrorIsLogged(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	f.putErr = errors.New("permission denied")
	c, buf := newTestClient(t, f)

	c.UpsertPolicy(context.Background(), "p", "rules")
	assert.Contains(t, buf.String(), "Error creating policy p: permission denied")
}

func TestGetOrCreateRole_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	first, err := c.GetOrCreateRole(ctx, "payments_dev_role", "payments_dev_policy")
	require.NoError(t, err)
	second, err := c.GetOrCreateRole(ctx, "payments_dev_role", "other_policy")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, f.roles, 1)
	assert.Equal(t, []string{"payments_dev_policy"}, f.roles["payments_dev_role"])
	assert.Equal(t, []string{"auth/approle/role/payments_dev_role"}, f.writes)
}

func TestGetOrCreateRole_OtherErrorsPropagate(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	f.readErr = dserrors.AuthError{Backend: "vault", Err: errors.New("403")}
	c, _ := newTestClient(t, f)

	_, err := c.GetOrCreateRole(context.Background(), "r", "p")
	require.Error(t, err)
	assert.True(t, dserrors.IsAuth(err))
	assert.Empty(t, f.roles)
}

func TestIssueCredentialAndLogin(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	c, buf := newTestClient(t, f)
	ctx := context.Background()

	roleID, err := c.GetOrCreateRole(ctx, "r", "p")
	require.NoError(t, err)

	secretID, token, err := c.IssueCredentialAndLogin(ctx, "r", roleID)
	require.NoError(t, err)
	assert.NotEmpty(t, secretID)
	assert.Equal(t, "hvs.client-id-r", token)
	assert.NotContains(t, buf.String(), token)
	assert.Contains(t, buf.String(), "[REDACTED]")
}

func TestWriteOrMergeSecret(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	c, _ := newTestClient(t, f)
	ctx := context.Background()

	require.NoError(t, c.WriteOrMergeSecret(ctx, "devops_kv", "dev/kubernetes/namespace", "a", "1"))
	require.NoError(t, c.WriteOrMergeSecret(ctx, "devops_kv", "dev/kubernetes/namespace", "b", "2"))
	assert.Equal(t, map[string]interface{}{"a": "1", "b": "2"}, f.kv["devops_kv/dev/kubernetes/namespace"])

	require.NoError(t, c.WriteOrMergeSecret(ctx, "devops_kv", "dev/kubernetes/namespace", "a", "3"))
	assert.Equal(t, map[string]interface{}{"a": "3", "b": "2"}, f.kv["devops_kv/dev/kubernetes/namespace"])

	// one session from New plus one per write
	assert.Equal(t, 4, f.sessions)
}

func TestWriteOrMergeSecret_ReadFailureStops(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	c, _ := newTestClient(t, f)
	f.readErr = errors.New("connection refused")

	err := c.WriteOrMergeSecret(context.Background(), "devops_kv", "p", "k", "v")
	require.Error(t, err)
	assert.Empty(t, f.kv)
}

func TestGenerateEnvironmentSecret(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	c, _ := newTestClient(t, f)

	out, err := c.GenerateEnvironmentSecret(context.Background(), "payments", "dev", "payments-ns")
	require.NoError(t, err)

	assert.Contains(t, f.policies["payments_dev_policy"], `"secret/payments/+/dev"`)
	assert.Equal(t, []string{"payments_dev_policy"}, f.roles["payments_dev_role"])

	var doc struct {
		Kind     string `yaml:"kind"`
		Metadata struct {
			Name      string `yaml:"name"`
			Namespace string `yaml:"namespace"`
		} `yaml:"metadata"`
		Data map[string]string `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "Secret", doc.Kind)
	assert.Equal(t, "vault-payments", doc.Metadata.Name)
	assert.Equal(t, "payments-ns", doc.Metadata.Namespace)
	assert.Contains(t, doc.Data, "VAULT_ROLE_ID")
	assert.Contains(t, doc.Data, "VAULT_SECRET_ID")
}

func TestCheckAuthenticated(t *testing.T) {
	t.Parallel()

	f := newFakeVault()
	c, _ := newTestClient(t, f)
	require.NoError(t, c.CheckAuthenticated(context.Background()))

	f.lookupErr = errors.New("bad token")
	err := c.CheckAuthenticated(context.Background())
	assert.True(t, dserrors.IsAuth(err))
}

func TestNew_ConnectFailure(t *testing.T) {
	t.Parallel()

	_, err := New(func() (Backend, error) { return nil, errors.New("dial") }, nil)
	assert.EqualError(t, err, "dial")
}
