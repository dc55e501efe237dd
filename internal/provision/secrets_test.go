package provision

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/systmms/provisioner/internal/scm"
)

func TestSecrets_WrittenPerBranch(t *testing.T) {
	t.Parallel()

	h := newHarness(testSettings())
	report, err := h.wf.Run(context.Background(), Options{SkipCode: true, SkipChart: true})
	require.NoError(t, err)
	assert.False(t, report.Failed(), report.Summary())

	assert.Equal(t, []string{"dev", "prod"}, h.vault.envs)
	require.Len(t, h.vault.writes, 2)

	for i, branch := range []string{"dev", "prod"} {
		w := h.vault.writes[i]
		assert.Equal(t, "devops_kv", w.mount)
		assert.Equal(t, branch+"/kubernetes/namespace", w.path)
		assert.Equal(t, "payments_ns", w.key)

		docs := documents(w.value)
		require.Len(t, docs, 3)
		assert.Contains(t, docs[0], "consul-payments")
		assert.Contains(t, docs[1], "vault-payments")
		assert.Contains(t, docs[2], "name: regcred")
		assert.Contains(t, docs[2], "kubernetes.io/dockerconfigjson")
	}
}

func TestSecrets_UnknownBranchGetsNoVaultSecret(t *testing.T) {
	t.Parallel()

	s := testSettings()
	s.Deploy.ClusterType = "staging"
	h := newHarness(s)

	_, err := h.wf.Run(context.Background(), Options{SkipCode: true, SkipChart: true})
	require.NoError(t, err)

	assert.Empty(t, h.vault.envs)
	require.Len(t, h.vault.writes, 1)
	assert.Len(t, documents(h.vault.writes[0].value), 2)
}

func TestSecrets_SkippedWhenVariableExists(t *testing.T) {
	t.Parallel()

	h := newHarness(testSettings())
	h.session.Variables = []scm.Variable{{Key: "payments_ns"}}

	report, err := h.wf.Run(context.Background(), Options{SkipCode: true, SkipChart: true})
	require.NoError(t, err)

	for _, res := range report.Steps(StepSecret) {
		assert.Equal(t, Skipped, res.Kind)
	}
	assert.Zero(t, h.consul.calls)
	assert.Empty(t, h.vault.writes)
}

func TestSecrets_VaultFailureIsStepLocal(t *testing.T) {
	t.Parallel()

	h := newHarness(testSettings())
	h.vault.GenerateErr = errors.New("permission denied")

	report, err := h.wf.Run(context.Background(), Options{SkipCode: true, SkipChart: true})
	require.NoError(t, err)

	steps := report.Steps(StepSecret)
	require.Len(t, steps, 2)
	assert.Equal(t, Failed, steps[0].Kind)
	assert.Equal(t, Failed, steps[1].Kind)
	assert.Empty(t, h.vault.writes)

	assert.Equal(t, "vault", steps[0].Backend)
	assert.ErrorIs(t, steps[0].Err, h.vault.GenerateErr)
	assert.Contains(t, steps[0].Err.Error(), "vault error during namespace_secret")
	assert.Contains(t, steps[0].Err.Error(), "sudo on sys/policies")
}

func TestSecrets_MissingBackends(t *testing.T) {
	t.Parallel()

	h := newHarness(testSettings())
	h.wf.vault = nil

	report, err := h.wf.Run(context.Background(), Options{SkipCode: true, SkipChart: true})
	require.NoError(t, err)
	assert.True(t, report.Failed())
}

func TestSecretPath(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "devdmz/kubernetes/namespace", SecretPath("devdmz"))
}
