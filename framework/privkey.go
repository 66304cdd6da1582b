package framework

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type PrivKey struct {
	Priv *ecdsa.PrivateKey
}

// NewPrivKeyFromHex parses a hex encoded secp256k1 key, with or without 0x prefix.
func NewPrivKeyFromHex(hexStr string) (*PrivKey, error) {
	hexStr = strings.TrimPrefix(strings.TrimSpace(hexStr), "0x")
	key, err := crypto.HexToECDSA(hexStr)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return &PrivKey{Priv: key}, nil
}

func GeneratePrivKey() *PrivKey {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(fmt.Sprintf("failed to generate private key: %v", err))
	}
	return &PrivKey{Priv: key}
}

func (p *PrivKey) Address() common.Address {
	return crypto.PubkeyToAddress(p.Priv.PublicKey)
}

func (p *PrivKey) MarshalPrivKey() []byte {
	return crypto.FromECDSA(p.Priv)
}
