package framework

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

type Contract struct {
	addr     common.Address
	abi      *abi.ABI
	fr       *Framework
	key      *PrivKey
	deployTx common.Hash
	bound    *bind.BoundContract
}

func (c *Contract) Address() common.Address {
	return c.addr
}

func (c *Contract) Abi() *abi.ABI {
	return c.abi
}

// DeployTx is the creation transaction hash, zero for contracts bound with ContractAt.
func (c *Contract) DeployTx() common.Hash {
	return c.deployTx
}

// Ref returns the same contract signing with another key.
func (c *Contract) Ref(key *PrivKey) *Contract {
	ref := *c
	ref.key = key
	return &ref
}

// Call runs a read-only method and returns its unpacked outputs.
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// SendTransaction sends a method call with optional value and waits for the
// receipt. A mined but reverted transaction is not an error here; check
// receipt.Status.
func (c *Contract) SendTransaction(ctx context.Context, method string, args []interface{}, value *big.Int) (*types.Receipt, error) {
	opts, err := c.fr.transactOpts(ctx, c.key)
	if err != nil {
		return nil, err
	}
	opts.Value = value

	tx, err := c.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, err
	}
	c.fr.log.WithField("method", method).WithField("tx", tx.Hash().Hex()).Debug("transaction sent")

	return c.fr.waitMined(ctx, tx)
}
