package auth

import (
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/trufnetwork/streampay/core/util"
)

// Signer signs transaction hashes on behalf of one account.
type Signer interface {
	// Address is the account the signatures recover to.
	Address() util.EthereumAddress
	// Sign produces a 65-byte recoverable secp256k1 signature over a 32-byte hash.
	Sign(hash []byte) ([]byte, error)
}

// EthSigner signs with a secp256k1 private key, the same scheme EVM accounts use.
type EthSigner struct {
	key     *ecdsa.PrivateKey
	address util.EthereumAddress
}

var _ Signer = (*EthSigner)(nil)

func NewEthSigner(key *ecdsa.PrivateKey) *EthSigner {
	return &EthSigner{
		key:     key,
		address: util.AddressFromCommon(crypto.PubkeyToAddress(key.PublicKey)),
	}
}

// NewEthSignerFromHex loads a hex-encoded private key, with or without 0x prefix.
func NewEthSignerFromHex(hexKey string) (*EthSigner, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse private key")
	}
	return NewEthSigner(key), nil
}

// GenerateEthSigner creates a signer over a fresh random key.
func GenerateEthSigner() (*EthSigner, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return NewEthSigner(key), nil
}

func (s *EthSigner) Address() util.EthereumAddress {
	return s.address
}

func (s *EthSigner) Sign(hash []byte) ([]byte, error) {
	sig, err := crypto.Sign(hash, s.key)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return sig, nil
}

// RecoverAddress returns the account that produced sig over hash.
func RecoverAddress(hash, sig []byte) (util.EthereumAddress, error) {
	pub, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return util.EthereumAddress{}, errors.Wrap(err, "failed to recover signer")
	}
	return util.AddressFromCommon(crypto.PubkeyToAddress(*pub)), nil
}
