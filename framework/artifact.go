package framework

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	errArtifactNoAbi  = errors.New("artifact has no abi")
	errArtifactNoPath = errors.New("artifact was not read from a file")
)

// NetworkDeployment is the record a deployment leaves in an artifact's
// networks section, keyed by chain id.
type NetworkDeployment struct {
	Address         common.Address `json:"address"`
	TransactionHash common.Hash    `json:"transactionHash"`
}

// Artifact is a compiled contract as written by truffle (build/contracts/X.json)
// or forge (out/X.sol/X.json).
type Artifact struct {
	ContractName string
	Abi          *abi.ABI
	Code         []byte
	Networks     map[string]NetworkDeployment

	path string
	raw  map[string]json.RawMessage
}

type artifactObj struct {
	ContractName string                       `json:"contractName"`
	Abi          *abi.ABI                     `json:"abi"`
	Bytecode     bytecode                     `json:"bytecode"`
	Networks     map[string]NetworkDeployment `json:"networks"`
}

// bytecode accepts both the truffle string form and the forge {"object": ...} form.
type bytecode []byte

func (b *bytecode) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		var obj struct {
			Object string `json:"object"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return fmt.Errorf("bytecode: %w", err)
		}
		str = obj.Object
	}

	if str == "" || str == "0x" {
		*b = nil
		return nil
	}
	if !strings.HasPrefix(str, "0x") {
		str = "0x" + str
	}
	code, err := hexutil.Decode(str)
	if err != nil {
		return fmt.Errorf("bytecode: %w", err)
	}
	*b = code
	return nil
}

// ParseArtifact decodes an artifact from its JSON form.
func ParseArtifact(data []byte) (*Artifact, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	var obj artifactObj
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, err
	}
	if obj.Abi == nil {
		return nil, errArtifactNoAbi
	}
	if obj.Networks == nil {
		obj.Networks = map[string]NetworkDeployment{}
	}

	return &Artifact{
		ContractName: obj.ContractName,
		Abi:          obj.Abi,
		Code:         obj.Bytecode,
		Networks:     obj.Networks,
		raw:          raw,
	}, nil
}

// ReadArtifact reads the artifact stored at path. The contract name defaults
// to the file name when the artifact does not carry one.
func ReadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	artifact, err := ParseArtifact(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if artifact.ContractName == "" {
		artifact.ContractName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	artifact.path = path
	return artifact, nil
}

// Path returns the file the artifact was read from, if any.
func (a *Artifact) Path() string {
	return a.path
}

// Network returns the deployment recorded for the given chain.
func (a *Artifact) Network(chainID *big.Int) (NetworkDeployment, bool) {
	nd, ok := a.Networks[chainID.String()]
	return nd, ok
}

func (a *Artifact) SetNetwork(chainID *big.Int, nd NetworkDeployment) {
	if a.Networks == nil {
		a.Networks = map[string]NetworkDeployment{}
	}
	a.Networks[chainID.String()] = nd
}

// MarshalJSON writes the artifact back, keeping every field it was read with
// and replacing only the networks section.
func (a *Artifact) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(a.raw)+1)
	for k, v := range a.raw {
		out[k] = v
	}

	networks, err := json.Marshal(a.Networks)
	if err != nil {
		return nil, err
	}
	out["networks"] = networks

	if _, ok := out["contractName"]; !ok && a.ContractName != "" {
		name, err := json.Marshal(a.ContractName)
		if err != nil {
			return nil, err
		}
		out["contractName"] = name
	}
	return json.MarshalIndent(out, "", "  ")
}

// Save writes the artifact back to the file it was read from.
func (a *Artifact) Save() error {
	if a.path == "" {
		return errArtifactNoPath
	}
	data, err := a.MarshalJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(a.path, data, 0o644)
}

// ArtifactDir resolves artifacts by contract name inside a build directory.
type ArtifactDir string

func (d ArtifactDir) Require(name string) (*Artifact, error) {
	return ReadArtifact(filepath.Join(string(d), name+".json"))
}
