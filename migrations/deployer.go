package migrations

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/supply-chain-blockchain/supplychain/framework"
)

var (
	ErrNotDeployed = errors.New("contract has not been deployed to detected network")
	ErrNoCode      = errors.New("no code at recorded address")
)

// Instance is a contract known to be live on the current network.
type Instance struct {
	Address common.Address
	TxHash  common.Hash
}

// Deployer is handed to every migration step. Deploy creates the contract
// described by an artifact; Deployed resolves the live instance for it.
type Deployer interface {
	Deploy(ctx context.Context, artifact *framework.Artifact, args ...interface{}) error
	Deployed(ctx context.Context, artifact *framework.Artifact) (*Instance, error)
}

// ArtifactResolver looks up compiled contracts by name.
type ArtifactResolver interface {
	Require(name string) (*framework.Artifact, error)
}

// ChainDeployer deploys through a framework and keeps the resulting address in
// the artifact's networks section, saving the artifact file when there is one.
type ChainDeployer struct {
	log *logrus.Entry
	fr  *framework.Framework
}

func NewChainDeployer(log *logrus.Entry, fr *framework.Framework) *ChainDeployer {
	return &ChainDeployer{log: log, fr: fr}
}

func (d *ChainDeployer) Deploy(ctx context.Context, artifact *framework.Artifact, args ...interface{}) error {
	contract, err := d.fr.DeployContract(ctx, artifact, args...)
	if err != nil {
		return err
	}

	artifact.SetNetwork(d.fr.ChainID(), framework.NetworkDeployment{
		Address:         contract.Address(),
		TransactionHash: contract.DeployTx(),
	})
	if artifact.Path() != "" {
		if err := artifact.Save(); err != nil {
			return fmt.Errorf("save artifact %s: %w", artifact.Path(), err)
		}
	}

	d.log.WithFields(logrus.Fields{
		"contract": artifact.ContractName,
		"tx":       contract.DeployTx().Hex(),
	}).Debug("deploy transaction mined")
	return nil
}

func (d *ChainDeployer) Deployed(ctx context.Context, artifact *framework.Artifact) (*Instance, error) {
	chainID := d.fr.ChainID()
	nd, ok := artifact.Network(chainID)
	if !ok {
		return nil, fmt.Errorf("%s: %w (chain id %s)", artifact.ContractName, ErrNotDeployed, chainID)
	}

	code, err := d.fr.CodeAt(ctx, nd.Address)
	if err != nil {
		return nil, err
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%s at %s: %w", artifact.ContractName, nd.Address.Hex(), ErrNoCode)
	}

	return &Instance{Address: nd.Address, TxHash: nd.TransactionHash}, nil
}
