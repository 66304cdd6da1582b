package framework

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8545", cfg.RPCURL)
	assert.Equal(t, uint64(1337), cfg.ChainID)
	assert.Equal(t, uint64(2000000), cfg.GasLimit)
	assert.Equal(t, 2*time.Minute, cfg.TxTimeout)
	assert.Equal(t, "build/contracts/SupplyChain.json", cfg.ArtifactPath)
}

func TestLoadConfigDotEnv(t *testing.T) {
	t.Setenv("CHAIN_ID", "5")
	t.Setenv("RPC_URL", "")
	os.Unsetenv("RPC_URL")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("RPC_URL=http://ganache:7545\nCHAIN_ID=1337\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("RPC_URL") })

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://ganache:7545", cfg.RPCURL)
	// already set variables win over the file
	assert.Equal(t, uint64(5), cfg.ChainID)
}

func TestLoadConfigParseError(t *testing.T) {
	t.Setenv("GAS_LIMIT", "lots")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse env:")
}

func TestConfigKey(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.Key()
	assert.ErrorIs(t, err, errMissingPrivateKey)

	cfg.PrivateKey = "0x" + testKeyHex
	key, err := cfg.Key()
	require.NoError(t, err)
	assert.Equal(t, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266", key.Address().Hex())

	cfg.AccountAddress = "0xf39fd6e51aad88f6f4ce6ab8827279cfffb92266"
	_, err = cfg.Key()
	assert.NoError(t, err)

	cfg.AccountAddress = "0x0000000000000000000000000000000000000001"
	_, err = cfg.Key()
	assert.ErrorIs(t, err, errAccountMismatch)

	cfg.AccountAddress = "nope"
	_, err = cfg.Key()
	assert.ErrorIs(t, err, errInvalidAddress)
}

func TestConfigContract(t *testing.T) {
	cfg := &Config{}
	_, err := cfg.Contract()
	assert.ErrorIs(t, err, errMissingContractAddr)

	cfg.ContractAddress = "0x123"
	_, err = cfg.Contract()
	assert.ErrorIs(t, err, errInvalidAddress)

	cfg.ContractAddress = "0xd594760B2A36467ec7F0267382564772D7b0b73c"
	addr, err := cfg.Contract()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xd594760b2a36467ec7f0267382564772d7b0b73c"), addr)
}

func TestConfigResolveContract(t *testing.T) {
	chainID := big.NewInt(1337)
	migrated := common.HexToAddress("0x00000000000000000000000000000000c0ffee00")
	configured := common.HexToAddress("0xd594760b2a36467ec7f0267382564772d7b0b73c")

	artifact, err := ReadArtifact("testdata/SupplyChain.json")
	require.NoError(t, err)

	cfg := &Config{}
	_, err = cfg.ResolveContract(artifact, chainID)
	assert.ErrorIs(t, err, errNotMigrated)

	artifact.SetNetwork(chainID, NetworkDeployment{Address: migrated})

	// unset falls back to the migrated address
	addr, err := cfg.ResolveContract(artifact, chainID)
	require.NoError(t, err)
	assert.Equal(t, migrated, addr)

	// another chain has no deployment
	_, err = cfg.ResolveContract(artifact, big.NewInt(5))
	assert.ErrorIs(t, err, errNotMigrated)

	cfg.ContractAddress = configured.Hex()
	addr, err = cfg.ResolveContract(artifact, chainID)
	require.NoError(t, err)
	assert.Equal(t, configured, addr)

	// a malformed address is reported even though a deployment is recorded
	cfg.ContractAddress = "0xnothex"
	_, err = cfg.ResolveContract(artifact, chainID)
	assert.ErrorIs(t, err, errInvalidAddress)
}
