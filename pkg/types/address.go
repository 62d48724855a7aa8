package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// AddressSize is the length of an address in bytes.
const AddressSize = 20

// ErrInvalidAddress is wrapped by every ParseAddress failure.
var ErrInvalidAddress = errors.New("invalid address")

// Network holds the bech32 prefixes of one network. Staking addresses
// have their own prefix so they can never be pasted as a payment target.
type Network struct {
	Transfer string
	Staking  string
}

var (
	Mainnet = Network{Transfer: "kgx", Staking: "kgxs"}
	Testnet = Network{Transfer: "tkgx", Staking: "tkgxs"}
)

var active atomic.Pointer[Network]

func init() { SetNetwork(Mainnet) }

// SetNetwork selects the prefixes used by String, MarshalText and
// ParseAddress. The daemon calls it once at startup.
func SetNetwork(n Network) {
	active.Store(&n)
}

// ActiveNetwork returns the prefixes in use.
func ActiveNetwork() Network { return *active.Load() }

// Address is the 20-byte hash of a public key.
type Address [AddressSize]byte

func (a Address) IsZero() bool { return a == Address{} }

// String is the bech32 transfer address on the active network.
func (a Address) String() string { return a.Encode(ActiveNetwork().Transfer) }

// StakingString is the bech32 staking address on the active network.
func (a Address) StakingString() string { return a.Encode(ActiveNetwork().Staking) }

// Encode returns the bech32 form of a under hrp.
func (a Address) Encode(hrp string) string {
	s, err := bech32.EncodeFromBase256(hrp, a[:])
	if err != nil {
		return hrp + ":" + a.Hex()
	}
	return s
}

// Hex is the raw form stored in keystore files.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText accepts what ParseAddress accepts; empty text is the zero
// address.
func (a *Address) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*a = Address{}
		return nil
	}
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// ParseAddress accepts a bech32 transfer address of the active network or
// the 40-character hex form. Staking addresses and other networks'
// addresses are refused with a message naming the problem.
func ParseAddress(s string) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	var a Address
	if len(s) == 2*AddressSize {
		if _, err := hex.Decode(a[:], []byte(s)); err == nil {
			return a, nil
		}
	}

	hrp, data, err := bech32.DecodeToBase256(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	net := ActiveNetwork()
	switch hrp {
	case net.Transfer:
	case net.Staking:
		return Address{}, fmt.Errorf("%w: staking address cannot receive transfers", ErrInvalidAddress)
	default:
		return Address{}, fmt.Errorf("%w: prefix %q is not %q", ErrInvalidAddress, hrp, net.Transfer)
	}
	if len(data) != AddressSize {
		return Address{}, fmt.Errorf("%w: %d bytes, want %d", ErrInvalidAddress, len(data), AddressSize)
	}
	copy(a[:], data)
	return a, nil
}
