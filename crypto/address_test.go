package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knotcoin/knotcoin/common"
)

func TestAddressRoundTrip(t *testing.T) {
	var addr common.Address
	for i := range addr {
		addr[i] = byte(i * 7)
	}
	encoded := EncodeAddress(addr)
	assert.Contains(t, encoded, AddressPrefix)

	decoded, err := DecodeAddress(encoded)
	require.NoError(t, err)
	assert.Equal(t, addr, decoded)
}

func TestAddressDecodeRejectsMutatedChecksum(t *testing.T) {
	var addr common.Address
	for i := range addr {
		addr[i] = byte(i + 1)
	}
	encoded := EncodeAddress(addr)

	for i := len(AddressPrefix); i < len(encoded); i++ {
		mutated := []byte(encoded)
		orig := mutated[i]
		// rotate through the base32 alphabet until we land on a different
		// character, so every position is checked regardless of its value
		for delta := byte(1); delta < 32; delta++ {
			mutated[i] = rotateBase32Char(orig, delta)
			if mutated[i] != orig {
				break
			}
		}
		_, err := DecodeAddress(string(mutated))
		assert.Error(t, err, "mutating byte %d of %q must invalidate the checksum", i, encoded)
	}
}

// rotateBase32Char returns a different character from the standard base32
// alphabet, used to mutate one position of an encoded address.
func rotateBase32Char(c byte, delta byte) byte {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ234567"
	idx := 0
	for i := 0; i < len(alphabet); i++ {
		if alphabet[i] == c {
			idx = i
			break
		}
	}
	return alphabet[(idx+int(delta))%len(alphabet)]
}

func TestAddressDecodeRejectsBadPrefix(t *testing.T) {
	_, err := DecodeAddress("XYZ1somethingthatisnotanaddress")
	assert.ErrorIs(t, err, ErrAddressBadPrefix)
}

func TestAddressDecodeRejectsWrongLength(t *testing.T) {
	_, err := DecodeAddress(AddressPrefix + "AAAA")
	assert.ErrorIs(t, err, ErrAddressTooShort)
}

func TestDeriveAddressIsFirst32BytesOfSha512(t *testing.T) {
	pub := []byte("a fake public key, any bytes will do for this test")
	addr := DeriveAddress(pub)
	want := Sha512(pub)
	assert.Equal(t, want[:common.AddressLength], addr.Bytes())
}
