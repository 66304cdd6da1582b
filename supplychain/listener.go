package supplychain

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

type logSubscriber interface {
	SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error)
}

// Listener follows ProductAdded events of one contract. The backend needs
// subscription support (a websocket endpoint for ethclient).
type Listener struct {
	log          *logrus.Entry
	client       logSubscriber
	contractAddr common.Address
	eventAbi     abi.Event
}

func NewListener(log *logrus.Entry, client logSubscriber, contractAddr common.Address, contractAbi *abi.ABI) (*Listener, error) {
	eventAbi, ok := contractAbi.Events[EventProductAdded]
	if !ok {
		return nil, errMissingEvent
	}

	return &Listener{
		log:          log.WithField("contract", contractAddr.Hex()),
		client:       client,
		contractAddr: contractAddr,
		eventAbi:     eventAbi,
	}, nil
}

// Listen forwards decoded events until ctx is done or the subscription fails.
// Logs that do not decode are reported and skipped.
func (l *Listener) Listen(ctx context.Context, events chan<- ProductAddedEvent) error {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{l.contractAddr},
		Topics:    [][]common.Hash{{l.eventAbi.ID}},
	}
	logs := make(chan types.Log)
	sub, err := l.client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("create logs filter: %w", err)
	}
	defer sub.Unsubscribe()

	l.log.Info("Start listening to events")
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-sub.Err():
			return fmt.Errorf("subscription: %w", err)
		case vLog := <-logs:
			event := &ProductAddedEvent{}
			if err := event.Unpack(&vLog, l.eventAbi); err != nil {
				l.log.WithError(err).Warn("Failed to unpack product event")
				break
			}

			l.log.WithField("product", event.ProductID).WithField("name", event.Name).Info("Product added event received")
			select {
			case events <- *event:
			case <-ctx.Done():
				return nil
			}
		}
	}
}
