package util

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// EthereumAddress identifies an account on the ledger. The zero value is the
// zero address, which is never a valid stream party.
type EthereumAddress struct {
	addr common.Address
}

// NewEthereumAddressFromString parses a hex address, with or without 0x prefix.
func NewEthereumAddressFromString(s string) (EthereumAddress, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	if !common.IsHexAddress(s) {
		return EthereumAddress{}, errors.Errorf("invalid ethereum address: %q", s)
	}
	return EthereumAddress{addr: common.HexToAddress(s)}, nil
}

// AddressFromCommon wraps a go-ethereum address.
func AddressFromCommon(a common.Address) EthereumAddress {
	return EthereumAddress{addr: a}
}

// MustAddress is NewEthereumAddressFromString for constants and tests.
func MustAddress(s string) EthereumAddress {
	a, err := NewEthereumAddressFromString(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Address returns the lowercase 0x-prefixed hex form.
func (e EthereumAddress) Address() string {
	return strings.ToLower(e.addr.Hex())
}

func (e EthereumAddress) String() string {
	return e.Address()
}

func (e EthereumAddress) Bytes() []byte {
	return e.addr.Bytes()
}

func (e EthereumAddress) Common() common.Address {
	return e.addr
}

func (e EthereumAddress) IsZero() bool {
	return e.addr == (common.Address{})
}

func (e EthereumAddress) MarshalText() ([]byte, error) {
	return []byte(e.Address()), nil
}

func (e *EthereumAddress) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*e = EthereumAddress{}
		return nil
	}
	a, err := NewEthereumAddressFromString(string(text))
	if err != nil {
		return err
	}
	*e = a
	return nil
}
