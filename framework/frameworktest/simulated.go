// Package frameworktest provides an in-memory chain for tests of code built
// on the framework package.
package frameworktest

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi/bind/backends"
	"github.com/ethereum/go-ethereum/core"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/supply-chain-blockchain/supplychain/framework"
)

const gasLimit = 30_000_000

// ChainID of the simulated chain.
var ChainID = params.AllEthashProtocolChanges.ChainID

// Backend mines a block after every accepted transaction.
type Backend struct {
	*backends.SimulatedBackend
}

func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := b.SimulatedBackend.SendTransaction(ctx, tx); err != nil {
		return err
	}
	b.Commit()
	return nil
}

// NewBackend starts a chain where every key holds 100 ether.
func NewBackend(t testing.TB, keys ...*framework.PrivKey) *Backend {
	t.Helper()

	balance := new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))
	alloc := core.GenesisAlloc{}
	for _, key := range keys {
		alloc[key.Address()] = core.GenesisAccount{Balance: balance}
	}

	sim := backends.NewSimulatedBackend(alloc, gasLimit)
	t.Cleanup(func() { sim.Close() })
	return &Backend{SimulatedBackend: sim}
}

// NewFramework returns a framework on a fresh simulated chain signing with a
// funded key, plus a logger whose entries the test can inspect.
func NewFramework(t testing.TB, opts ...framework.Option) (*framework.Framework, *test.Hook) {
	t.Helper()

	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	key := framework.GeneratePrivKey()
	backend := NewBackend(t, key)
	return framework.NewWithBackend(logrus.NewEntry(logger), backend, ChainID, key, opts...), hook
}
