package supplychain

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supply-chain-blockchain/supplychain/framework"
	"github.com/supply-chain-blockchain/supplychain/framework/frameworktest"
	"github.com/supply-chain-blockchain/supplychain/migrations"
)

// migratedClient runs the migrations on a simulated chain and binds a client
// to the contract they deployed.
func migratedClient(t *testing.T) (*Client, *framework.Framework) {
	client, fr, _ := migratedClientWithLog(t)
	return client, fr
}

func migratedClientWithLog(t *testing.T) (*Client, *framework.Framework, *test.Hook) {
	t.Helper()

	fr, _ := frameworktest.NewFramework(t, framework.WithGasLimit(2_000_000))
	logger, hook := test.NewNullLogger()
	log := logrus.NewEntry(logger)

	dir := t.TempDir()
	data, err := os.ReadFile("testdata/SupplyChain.json")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "SupplyChain.json"), data, 0o644))
	artifacts := framework.ArtifactDir(dir)

	env := &migrations.Env{
		Deployer:  migrations.NewChainDeployer(log, fr),
		Artifacts: artifacts,
		Log:       log,
	}
	runner := migrations.NewRunner(env, nil, fr.ChainID().String(), migrations.SupplyChain...)
	_, err = runner.Run(context.Background())
	require.NoError(t, err)

	artifact, err := artifacts.Require("SupplyChain")
	require.NoError(t, err)
	addr, err := (&framework.Config{}).ResolveContract(artifact, fr.ChainID())
	require.NoError(t, err)

	return NewClient(log, fr, fr.ContractAt(addr, artifact.Abi), fr.Key().Address()), fr, hook
}

func TestClientOnChain(t *testing.T) {
	client, fr := migratedClient(t)
	ctx := context.Background()

	count, err := client.ProductCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)

	total, overflow := uint256.FromBig(new(big.Int).Lsh(big.NewInt(1), 200))
	require.False(t, overflow)

	first, err := client.AddProduct(ctx, NewProduct{
		Name:          "Smart watch",
		Origin:        "Caguas",
		Destination:   "Santo Domingo",
		ScheduledDays: 4,
		OrderTotal:    uint256.NewInt(31499),
	})
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, first.Receipt.Status)
	assert.True(t, first.HasProductID)
	assert.Equal(t, uint64(1), first.ProductID)

	second, err := client.AddProduct(ctx, NewProduct{
		Name:        "Perfect Fitness Perfect Rip Deck with a name longer than one word",
		Destination: "Tokyo",
		OrderTotal:  total,
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), second.ProductID)

	count, err = client.ProductCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), count)

	product, err := client.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, &Product{
		ID:            1,
		Name:          "Smart watch",
		Origin:        "Caguas",
		Destination:   "Santo Domingo",
		ScheduledDays: 4,
		OrderTotal:    uint256.NewInt(31499),
		AddedBy:       fr.Key().Address(),
	}, product)

	product, err = client.GetProduct(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "Perfect Fitness Perfect Rip Deck with a name longer than one word", product.Name)
	assert.Equal(t, "", product.Origin)
	assert.Equal(t, total, product.OrderTotal)

	_, err = client.GetProduct(ctx, 3)
	assert.Error(t, err)
}

func TestProductAddedFromReceipt(t *testing.T) {
	client, fr := migratedClient(t)

	result, err := client.AddProduct(context.Background(), NewProduct{Name: "Cleats"})
	require.NoError(t, err)
	require.Len(t, result.Receipt.Logs, 1)

	eventAbi := client.contract.Abi().Events[EventProductAdded]
	ev := &ProductAddedEvent{}
	require.NoError(t, ev.Unpack(result.Receipt.Logs[0], eventAbi))
	assert.Equal(t, uint64(1), ev.ProductID)
	assert.Equal(t, fr.Key().Address(), ev.AddedBy)
	assert.Equal(t, "Cleats", ev.Name)
	assert.Equal(t, result.Receipt.TxHash, ev.TxHash)
}

func TestListenerOnChain(t *testing.T) {
	client, fr, hook := migratedClientWithLog(t)

	contract := client.contract
	listener, err := NewListener(client.log, fr.Backend(), contract.Address(), contract.Abi())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events := make(chan ProductAddedEvent, 1)
	done := make(chan error, 1)
	go func() { done <- listener.Listen(ctx, events) }()

	require.Eventually(t, func() bool {
		for _, entry := range hook.AllEntries() {
			if entry.Message == "Start listening to events" {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)

	result, err := client.AddProduct(ctx, NewProduct{Name: "Smart watch"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, uint64(1), ev.ProductID)
		assert.Equal(t, "Smart watch", ev.Name)
		assert.Equal(t, fr.Key().Address(), ev.AddedBy)
		assert.Equal(t, result.Receipt.TxHash, ev.TxHash)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for the event")
	}

	cancel()
	assert.NoError(t, <-done)
}
