// Package supplychain talks to a deployed SupplyChain contract: it records
// products, reads them back, follows ProductAdded events and serves them
// over HTTP.
package supplychain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
)

const (
	MethodAddProduct   = "addProduct"
	MethodGetProduct   = "getProduct"
	MethodProductCount = "productCount"
	EventProductAdded  = "ProductAdded"
)

var (
	ErrTxReverted       = errors.New("transaction reverted")
	errUnexpectedOutput = errors.New("unexpected contract output")
	errUnexpectedEvent  = errors.New("log is not a " + EventProductAdded + " event")
	errValueOverflow    = errors.New("value does not fit")
	errMissingEvent     = errors.New("missing event " + EventProductAdded + " in abi")
)

var weiPerEther = uint256.NewInt(1_000_000_000_000_000_000)

type Product struct {
	ID            uint64
	Name          string
	Origin        string
	Destination   string
	ScheduledDays uint64
	OrderTotal    *uint256.Int
	AddedBy       common.Address
}

type NewProduct struct {
	Name          string
	Origin        string
	Destination   string
	ScheduledDays uint64
	OrderTotal    *uint256.Int
}

// AddResult is the outcome of a mined addProduct transaction. ProductID is
// only meaningful when HasProductID is set, i.e. the receipt carried a
// ProductAdded event.
type AddResult struct {
	Receipt      *types.Receipt
	ProductID    uint64
	HasProductID bool
}

type ConnectionStatus struct {
	ChainID     *big.Int
	BlockNumber uint64
	Account     common.Address
	Balance     *uint256.Int
}

// BalanceEther formats the balance in ether without trailing zeros.
func (s *ConnectionStatus) BalanceEther() string {
	return FormatEther(s.Balance)
}

// contract is the subset of *framework.Contract the client uses.
type contract interface {
	Address() common.Address
	Abi() *abi.ABI
	Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error)
	SendTransaction(ctx context.Context, method string, args []interface{}, value *big.Int) (*types.Receipt, error)
}

// chain is the subset of *framework.Framework the client uses.
type chain interface {
	ChainID() *big.Int
	Header(ctx context.Context) (*types.Header, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

type Client struct {
	log      *logrus.Entry
	chain    chain
	contract contract
	account  common.Address
}

func NewClient(log *logrus.Entry, chain chain, contract contract, account common.Address) *Client {
	return &Client{
		log:      log.WithField("contract", contract.Address().Hex()),
		chain:    chain,
		contract: contract,
		account:  account,
	}
}

func (c *Client) AddProduct(ctx context.Context, p NewProduct) (*AddResult, error) {
	orderTotal := new(big.Int)
	if p.OrderTotal != nil {
		orderTotal = p.OrderTotal.ToBig()
	}
	args := []interface{}{
		p.Name,
		p.Origin,
		p.Destination,
		new(big.Int).SetUint64(p.ScheduledDays),
		orderTotal,
	}

	receipt, err := c.contract.SendTransaction(ctx, MethodAddProduct, args, nil)
	if err != nil {
		return nil, fmt.Errorf("add product: %w", err)
	}
	log := c.log.WithField("tx", receipt.TxHash.Hex())
	if receipt.Status != types.ReceiptStatusSuccessful {
		log.Warn("addProduct transaction reverted")
		return &AddResult{Receipt: receipt}, fmt.Errorf("add product %s: %w", receipt.TxHash.Hex(), ErrTxReverted)
	}

	result := &AddResult{Receipt: receipt}
	if eventAbi, ok := c.contract.Abi().Events[EventProductAdded]; ok {
		for _, vLog := range receipt.Logs {
			ev := &ProductAddedEvent{}
			if err := ev.Unpack(vLog, eventAbi); err != nil {
				continue
			}
			result.ProductID = ev.ProductID
			result.HasProductID = true
			break
		}
	}

	log.WithField("product", result.ProductID).Info("Product added")
	return result, nil
}

func (c *Client) GetProduct(ctx context.Context, id uint64) (*Product, error) {
	out, err := c.contract.Call(ctx, MethodGetProduct, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, fmt.Errorf("get product %d: %w", id, err)
	}
	return unpackProduct(out)
}

func (c *Client) ProductCount(ctx context.Context) (uint64, error) {
	out, err := c.contract.Call(ctx, MethodProductCount)
	if err != nil {
		return 0, fmt.Errorf("product count: %w", err)
	}
	if len(out) != 1 {
		return 0, fmt.Errorf("%w: %d values from %s", errUnexpectedOutput, len(out), MethodProductCount)
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("%w: %T from %s", errUnexpectedOutput, out[0], MethodProductCount)
	}
	return toUint64(count)
}

// CheckConnection reports the chain the client is connected to and the
// balance of the sending account.
func (c *Client) CheckConnection(ctx context.Context) (*ConnectionStatus, error) {
	header, err := c.chain.Header(ctx)
	if err != nil {
		return nil, fmt.Errorf("latest header: %w", err)
	}
	balance, err := c.chain.Balance(ctx, c.account)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", c.account.Hex(), err)
	}
	b, overflow := uint256.FromBig(balance)
	if overflow {
		return nil, fmt.Errorf("balance: %w", errValueOverflow)
	}

	return &ConnectionStatus{
		ChainID:     c.chain.ChainID(),
		BlockNumber: header.Number.Uint64(),
		Account:     c.account,
		Balance:     b,
	}, nil
}

func unpackProduct(out []interface{}) (*Product, error) {
	if len(out) != 7 {
		return nil, fmt.Errorf("%w: %d values from %s", errUnexpectedOutput, len(out), MethodGetProduct)
	}

	id, ok1 := out[0].(*big.Int)
	name, ok2 := out[1].(string)
	origin, ok3 := out[2].(string)
	destination, ok4 := out[3].(string)
	scheduledDays, ok5 := out[4].(*big.Int)
	orderTotal, ok6 := out[5].(*big.Int)
	addedBy, ok7 := out[6].(common.Address)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7) {
		return nil, fmt.Errorf("%w: types of %s", errUnexpectedOutput, MethodGetProduct)
	}

	p := &Product{
		Name:        name,
		Origin:      origin,
		Destination: destination,
		AddedBy:     addedBy,
	}
	var err error
	if p.ID, err = toUint64(id); err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	if p.ScheduledDays, err = toUint64(scheduledDays); err != nil {
		return nil, fmt.Errorf("scheduled days: %w", err)
	}
	var overflow bool
	if p.OrderTotal, overflow = uint256.FromBig(orderTotal); overflow {
		return nil, fmt.Errorf("order total: %w", errValueOverflow)
	}
	return p, nil
}

func toUint64(v *big.Int) (uint64, error) {
	if v.Sign() < 0 || !v.IsUint64() {
		return 0, fmt.Errorf("%w in uint64: %s", errValueOverflow, v)
	}
	return v.Uint64(), nil
}

// FormatEther renders a wei amount in ether.
func FormatEther(wei *uint256.Int) string {
	if wei == nil {
		return "0"
	}
	whole := new(uint256.Int).Div(wei, weiPerEther)
	frac := new(uint256.Int).Mod(wei, weiPerEther)
	if frac.IsZero() {
		return whole.ToBig().String()
	}

	digits := frac.ToBig().String()
	digits = strings.Repeat("0", 18-len(digits)) + digits
	return whole.ToBig().String() + "." + strings.TrimRight(digits, "0")
}
