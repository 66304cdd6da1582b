package supplychain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ProductAddedEvent is emitted as ProductAdded(uint256 indexed productId,
// address indexed addedBy, string name).
type ProductAddedEvent struct {
	ProductID   uint64
	AddedBy     common.Address
	Name        string
	TxHash      common.Hash
	BlockNumber uint64
}

func (e *ProductAddedEvent) Unpack(log *types.Log, eventAbi abi.Event) error {
	if len(log.Topics) != 3 || log.Topics[0] != eventAbi.ID {
		return errUnexpectedEvent
	}

	unpacked, err := eventAbi.Inputs.NonIndexed().Unpack(log.Data)
	if err != nil {
		return err
	}
	if len(unpacked) != 1 {
		return fmt.Errorf("%w: %d data values", errUnexpectedEvent, len(unpacked))
	}
	name, ok := unpacked[0].(string)
	if !ok {
		return fmt.Errorf("%w: name is %T", errUnexpectedEvent, unpacked[0])
	}

	id, err := toUint64(new(big.Int).SetBytes(log.Topics[1].Bytes()))
	if err != nil {
		return err
	}

	e.ProductID = id
	e.AddedBy = common.BytesToAddress(log.Topics[2].Bytes())
	e.Name = name
	e.TxHash = log.TxHash
	e.BlockNumber = log.BlockNumber
	return nil
}
