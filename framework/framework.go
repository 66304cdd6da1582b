// Package framework wraps a go-ethereum backend with the pieces needed to
// deploy contracts from build artifacts and talk to them afterwards.
package framework

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
)

const transferGas = 21000

var (
	ErrNoSigner   = errors.New("no signing key configured")
	ErrNoBytecode = errors.New("artifact has no bytecode")
	ErrTxReverted = errors.New("transaction reverted")
)

// Backend is what the framework needs from a chain connection. Both
// *ethclient.Client and the simulated backend satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

type Framework struct {
	log      *logrus.Entry
	backend  Backend
	chainID  *big.Int
	key      *PrivKey
	gasLimit uint64
	timeout  time.Duration
	close    func()
}

type Option func(*Framework)

// WithGasLimit fixes the gas limit of contract transactions. Zero means estimate.
func WithGasLimit(gasLimit uint64) Option {
	return func(f *Framework) { f.gasLimit = gasLimit }
}

// WithTxTimeout bounds how long to wait for a transaction to be mined.
func WithTxTimeout(timeout time.Duration) Option {
	return func(f *Framework) {
		if timeout > 0 {
			f.timeout = timeout
		}
	}
}

// New dials cfg.RPCURL. When cfg.ChainID is zero the chain id is asked from the node.
func New(ctx context.Context, log *logrus.Entry, cfg *Config) (*Framework, error) {
	key, err := cfg.Key()
	if err != nil {
		return nil, err
	}

	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.RPCURL, err)
	}

	chainID := new(big.Int).SetUint64(cfg.ChainID)
	if cfg.ChainID == 0 {
		chainID, err = client.ChainID(ctx)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("get chain id: %w", err)
		}
	}

	fr := NewWithBackend(log, client, chainID, key, WithGasLimit(cfg.GasLimit), WithTxTimeout(cfg.TxTimeout))
	fr.close = client.Close
	return fr, nil
}

func NewWithBackend(log *logrus.Entry, backend Backend, chainID *big.Int, key *PrivKey, opts ...Option) *Framework {
	fr := &Framework{
		log:     log,
		backend: backend,
		chainID: new(big.Int).Set(chainID),
		key:     key,
		timeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(fr)
	}
	return fr
}

func (f *Framework) Close() {
	if f.close != nil {
		f.close()
	}
}

func (f *Framework) Backend() Backend {
	return f.backend
}

func (f *Framework) ChainID() *big.Int {
	return new(big.Int).Set(f.chainID)
}

// Key is the default signer, nil for a read-only framework.
func (f *Framework) Key() *PrivKey {
	return f.key
}

// DeployContract sends the creation transaction for the artifact and waits
// until code is present at the new address.
func (f *Framework) DeployContract(ctx context.Context, artifact *Artifact, args ...interface{}) (*Contract, error) {
	if len(artifact.Code) == 0 {
		return nil, fmt.Errorf("%s: %w", artifact.ContractName, ErrNoBytecode)
	}

	opts, err := f.transactOpts(ctx, f.key)
	if err != nil {
		return nil, err
	}
	// creation gas is always estimated; the fixed limit is meant for calls
	opts.GasLimit = 0

	_, tx, _, err := bind.DeployContract(opts, *artifact.Abi, artifact.Code, f.backend, args...)
	if err != nil {
		return nil, err
	}
	f.log.WithField("contract", artifact.ContractName).WithField("tx", tx.Hash().Hex()).Debug("deploy transaction sent")

	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	addr, err := bind.WaitDeployed(waitCtx, f.backend, tx)
	if err != nil {
		return nil, err
	}

	contract := f.ContractAt(addr, artifact.Abi)
	contract.deployTx = tx.Hash()
	return contract, nil
}

// ContractAt binds an already deployed contract, signing with the default key.
func (f *Framework) ContractAt(addr common.Address, contractAbi *abi.ABI) *Contract {
	return &Contract{
		addr:  addr,
		abi:   contractAbi,
		fr:    f,
		key:   f.key,
		bound: bind.NewBoundContract(addr, *contractAbi, f.backend, f.backend, f.backend),
	}
}

func (f *Framework) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	return f.backend.CodeAt(ctx, addr, nil)
}

func (f *Framework) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return f.backend.BalanceAt(ctx, addr, nil)
}

// Header returns the latest block header.
func (f *Framework) Header(ctx context.Context) (*types.Header, error) {
	return f.backend.HeaderByNumber(ctx, nil)
}

func (f *Framework) SignTx(key *PrivKey, txn types.TxData) (*types.Transaction, error) {
	if key == nil {
		return nil, ErrNoSigner
	}
	return types.SignNewTx(key.Priv, types.LatestSignerForChainID(f.chainID), txn)
}

// FundAccount transfers value from the default key to addr and waits for it.
func (f *Framework) FundAccount(ctx context.Context, to common.Address, value *big.Int) (*types.Receipt, error) {
	if f.key == nil {
		return nil, ErrNoSigner
	}

	nonce, err := f.backend.PendingNonceAt(ctx, f.key.Address())
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}
	gasPrice, err := f.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	tx, err := f.SignTx(f.key, &types.LegacyTx{
		Nonce:    nonce,
		To:       &to,
		Value:    value,
		Gas:      transferGas,
		GasPrice: gasPrice,
	})
	if err != nil {
		return nil, err
	}
	if err := f.backend.SendTransaction(ctx, tx); err != nil {
		return nil, err
	}

	receipt, err := f.waitMined(ctx, tx)
	if err != nil {
		return nil, err
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, ErrTxReverted
	}
	return receipt, nil
}

func (f *Framework) transactOpts(ctx context.Context, key *PrivKey) (*bind.TransactOpts, error) {
	if key == nil {
		return nil, ErrNoSigner
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key.Priv, f.chainID)
	if err != nil {
		return nil, err
	}
	opts.Context = ctx
	opts.GasLimit = f.gasLimit
	return opts, nil
}

func (f *Framework) waitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, f.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), err)
	}
	return receipt, nil
}
