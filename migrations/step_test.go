package migrations

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supply-chain-blockchain/supplychain/framework"
)

type mockDeployer struct {
	deployErr   error
	deployedErr error
	address     common.Address

	deployCalls   int
	deployedCalls int
}

func (m *mockDeployer) Deploy(_ context.Context, _ *framework.Artifact, _ ...interface{}) error {
	m.deployCalls++
	return m.deployErr
}

func (m *mockDeployer) Deployed(_ context.Context, _ *framework.Artifact) (*Instance, error) {
	m.deployedCalls++
	if m.deployedErr != nil {
		return nil, m.deployedErr
	}
	return &Instance{Address: m.address}, nil
}

type mapResolver map[string]*framework.Artifact

func (r mapResolver) Require(name string) (*framework.Artifact, error) {
	artifact, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("could not find artifact for %s", name)
	}
	return artifact, nil
}

func newTestEnv(d Deployer) (*Env, *test.Hook) {
	logger, hook := test.NewNullLogger()
	return &Env{
		Deployer:  d,
		Artifacts: mapResolver{"SupplyChain": {ContractName: "SupplyChain"}},
		Log:       logrus.NewEntry(logger),
	}, hook
}

func TestDeployContractSuccess(t *testing.T) {
	addr := common.HexToAddress("0xABC123")
	d := &mockDeployer{address: addr}
	env, hook := newTestEnv(d)

	err := DeployContract("SupplyChain")(context.Background(), env)
	require.NoError(t, err)

	assert.Equal(t, 1, d.deployCalls)
	assert.Equal(t, 1, d.deployedCalls)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "SupplyChain deployed at: "+addr.Hex(), entry.Message)
}

func TestDeployContractDeployFails(t *testing.T) {
	outOfGas := errors.New("out of gas")
	d := &mockDeployer{deployErr: outOfGas}
	env, hook := newTestEnv(d)

	err := DeployContract("SupplyChain")(context.Background(), env)
	assert.Same(t, outOfGas, err)

	assert.Equal(t, 1, d.deployCalls)
	assert.Equal(t, 0, d.deployedCalls)

	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "Error deploying SupplyChain: out of gas", entry.Message)
}

func TestDeployContractLookupFails(t *testing.T) {
	d := &mockDeployer{deployedErr: ErrNotDeployed}
	env, hook := newTestEnv(d)

	err := DeployContract("SupplyChain")(context.Background(), env)
	assert.Same(t, ErrNotDeployed, err)

	assert.Equal(t, 1, d.deployCalls)
	assert.Equal(t, 1, d.deployedCalls)

	require.Len(t, hook.AllEntries(), 1)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "Error deploying SupplyChain: "+ErrNotDeployed.Error(), hook.LastEntry().Message)
}

func TestDeployContractMissingArtifact(t *testing.T) {
	d := &mockDeployer{}
	env, hook := newTestEnv(d)

	err := DeployContract("Unknown")(context.Background(), env)
	require.Error(t, err)

	assert.Equal(t, 0, d.deployCalls)
	require.Len(t, hook.AllEntries(), 1)
	assert.Contains(t, hook.LastEntry().Message, "Error deploying Unknown:")
}
