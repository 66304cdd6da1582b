package framework

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
)

var (
	errMissingPrivateKey   = errors.New("missing PRIVATE_KEY")
	errMissingContractAddr = errors.New("missing CONTRACT_ADDRESS")
	errInvalidAddress      = errors.New("invalid address")
	errAccountMismatch     = errors.New("ACCOUNT_ADDRESS does not match PRIVATE_KEY")
	errNotMigrated         = errors.New("no CONTRACT_ADDRESS and no deployment recorded in the artifact")
)

// Config is read from the environment, after an optional .env file.
type Config struct {
	RPCURL          string        `env:"RPC_URL" envDefault:"http://127.0.0.1:8545"`
	ChainID         uint64        `env:"CHAIN_ID" envDefault:"1337"`
	PrivateKey      string        `env:"PRIVATE_KEY"`
	AccountAddress  string        `env:"ACCOUNT_ADDRESS"`
	ContractAddress string        `env:"CONTRACT_ADDRESS"`
	ArtifactPath    string        `env:"ARTIFACT_PATH" envDefault:"build/contracts/SupplyChain.json"`
	GasLimit        uint64        `env:"GAS_LIMIT" envDefault:"2000000"`
	TxTimeout       time.Duration `env:"TX_TIMEOUT" envDefault:"2m"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
}

// LoadConfig loads the given .env files (missing ones are skipped, variables
// already set win) and parses the environment into a Config.
func LoadConfig(envFiles ...string) (*Config, error) {
	for _, file := range envFiles {
		if _, err := os.Stat(file); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(file); err != nil {
			return nil, fmt.Errorf("load env (%s): %w", file, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Key returns the signing key. When ACCOUNT_ADDRESS is set it has to be the
// address of that key.
func (c *Config) Key() (*PrivKey, error) {
	if c.PrivateKey == "" {
		return nil, errMissingPrivateKey
	}
	key, err := NewPrivKeyFromHex(c.PrivateKey)
	if err != nil {
		return nil, err
	}

	if c.AccountAddress != "" {
		if !common.IsHexAddress(c.AccountAddress) {
			return nil, fmt.Errorf("%w: %s", errInvalidAddress, c.AccountAddress)
		}
		if common.HexToAddress(c.AccountAddress) != key.Address() {
			return nil, fmt.Errorf("%w: %s != %s", errAccountMismatch, c.AccountAddress, key.Address().Hex())
		}
	}
	return key, nil
}

func (c *Config) Contract() (common.Address, error) {
	if c.ContractAddress == "" {
		return common.Address{}, errMissingContractAddr
	}
	if !common.IsHexAddress(c.ContractAddress) {
		return common.Address{}, fmt.Errorf("%w: %s", errInvalidAddress, c.ContractAddress)
	}
	return common.HexToAddress(c.ContractAddress), nil
}

// ResolveContract returns CONTRACT_ADDRESS when set, otherwise the address the
// migrations recorded in the artifact for chainID. A malformed
// CONTRACT_ADDRESS is an error, never a reason to fall back.
func (c *Config) ResolveContract(artifact *Artifact, chainID *big.Int) (common.Address, error) {
	if c.ContractAddress != "" {
		return c.Contract()
	}
	if nd, ok := artifact.Network(chainID); ok {
		return nd.Address, nil
	}
	return common.Address{}, fmt.Errorf("%w (chain id %s)", errNotMigrated, chainID)
}
