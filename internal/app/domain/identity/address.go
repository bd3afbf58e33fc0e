// Package identity defines the fixed-width opaque addresses used for every
// party in the protocol. There is no account or username layer; an address is
// the whole identity.
package identity

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// AddressLength is the byte width of a protocol address.
const AddressLength = 20

// Address is a fixed-width opaque identity.
type Address [AddressLength]byte

// Zero is the empty address. It is never a valid party.
var Zero Address

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == Zero
}

// String renders the address as 0x-prefixed lowercase hex.
func (a Address) String() string {
	return "0x" + hex.EncodeToString(a[:])
}

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Parse decodes a 0x-prefixed or bare hex address.
func Parse(s string) (Address, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return Zero, fmt.Errorf("identity: invalid address %q: %w", s, err)
	}
	if len(raw) != AddressLength {
		return Zero, fmt.Errorf("identity: invalid address length %d", len(raw))
	}
	var a Address
	copy(a[:], raw)
	return a, nil
}

// MustParse is Parse for trusted literals; it panics on malformed input.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// SystemAddress derives a deterministic address for a protocol-owned role,
// such as a custody pool or treasury default.
func SystemAddress(label string) Address {
	sum := sha3.Sum256([]byte("system:" + label))
	var a Address
	copy(a[:], sum[:AddressLength])
	return a
}

// EscrowAddress derives the deterministic custody address for a mission. Each
// mission's funds live under its own address so escrows stay isolated.
func EscrowAddress(missionID uint64) Address {
	var seed [8 + 6]byte
	copy(seed[:6], "escrow")
	binary.BigEndian.PutUint64(seed[6:], missionID)
	sum := sha3.Sum256(seed[:])
	var a Address
	copy(a[:], sum[:AddressLength])
	return a
}
