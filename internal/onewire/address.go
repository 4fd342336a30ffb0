package onewire

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
)

// AddressLength is the size of a one-wire ROM code in bytes.
const AddressLength = 8

// Temperature sensor family codes.
const (
	FamilyDS18S20  byte = 0x10
	FamilyDS1822   byte = 0x22
	FamilyDS18B20  byte = 0x28
	FamilyDS1825   byte = 0x3B
	FamilyDS28EA00 byte = 0x42
)

// Address is the 64-bit ROM code of a one-wire device.
//
// Address is comparable and is used directly as a map key.
type Address [AddressLength]byte

// ParseAddress parses a 16 hex digit address.
//
// Accepts formats:
//   - "28FF4A1B02160348"
//   - "28:FF:4A:1B:02:16:03:48"
//   - "28-ff-4a-1b-02-16-03-48"
//
// Returns ErrInvalidAddress if the input does not decode to exactly 8 bytes.
func ParseAddress(s string) (Address, error) {
	clean := strings.NewReplacer(":", "", "-", "", " ", "").Replace(strings.TrimSpace(s))

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q is not hex: %w", ErrInvalidAddress, s, err)
	}
	return AddressFromBytes(raw)
}

// AddressFromBytes copies b into an Address.
// Returns ErrInvalidAddress unless len(b) is exactly 8.
func AddressFromBytes(b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, AddressLength, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// String returns the address as 16 upper-case hex digits, byte 0 first.
func (a Address) String() string {
	return strings.ToUpper(hex.EncodeToString(a[:]))
}

// Family returns the family code (byte 0).
func (a Address) Family() byte {
	return a[0]
}

// IsTemperatureSensor reports whether the family code belongs to a DS18x sensor.
func (a Address) IsTemperatureSensor() bool {
	switch a.Family() {
	case FamilyDS18S20, FamilyDS1822, FamilyDS18B20, FamilyDS1825, FamilyDS28EA00:
		return true
	default:
		return false
	}
}

// ValidCRC reports whether byte 7 matches the CRC8 of bytes 0-6.
func (a Address) ValidCRC() bool {
	return CRC8(a[:7]) == a[7]
}

// DefaultName derives the deterministic object name for an address.
//
// The eight bytes are read as two big-endian 32-bit integers (bytes 0-3 and
// 4-7) and each is printed as 8 upper-case hex digits after the prefix.
// Distinct addresses always yield distinct names for the same prefix.
//
// Example:
//
//	DefaultName(Address{1, 2, 3, 4, 5, 6, 7, 8}, "ds_") // "ds_0102030405060708"
func DefaultName(a Address, prefix string) string {
	hi := binary.BigEndian.Uint32(a[0:4])
	lo := binary.BigEndian.Uint32(a[4:8])
	return fmt.Sprintf("%s%08X%08X", prefix, hi, lo)
}

// CRC8 computes the Dallas/Maxim one-wire CRC (polynomial x^8 + x^5 + x^4 + 1).
func CRC8(data []byte) byte {
	var crc byte
	for _, b := range data {
		for i := 0; i < 8; i++ {
			mix := (crc ^ b) & 0x01
			crc >>= 1
			if mix != 0 {
				crc ^= 0x8C
			}
			b >>= 1
		}
	}
	return crc
}

// NewAddress builds a complete ROM code from a family code and 48-bit serial,
// computing the CRC byte.
func NewAddress(family byte, serial uint64) Address {
	var a Address
	a[0] = family
	for i := 0; i < 6; i++ {
		a[1+i] = byte(serial >> (8 * i)) //nolint:gosec // intentional truncation to one byte
	}
	a[7] = CRC8(a[:7])
	return a
}

// Serial returns the 48-bit serial number (bytes 1-6, LSB first).
func (a Address) Serial() uint64 {
	var serial uint64
	for i := 0; i < 6; i++ {
		serial |= uint64(a[1+i]) << (8 * i)
	}
	return serial
}
