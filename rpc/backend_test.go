package rpc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAuthenticateAcceptsMatchingCookie(t *testing.T) {
	b := NewBackend(nil, nil, nil, nil, "supersecrettoken")
	assert.True(t, b.Authenticate("supersecrettoken"))
}

func TestAuthenticateRejectsWrongOrEmptyToken(t *testing.T) {
	b := NewBackend(nil, nil, nil, nil, "supersecrettoken")
	assert.False(t, b.Authenticate("wrong"))
	assert.False(t, b.Authenticate(""))
}

func TestAuthenticateRejectsEmptyCookieEvenWithEmptyToken(t *testing.T) {
	b := NewBackend(nil, nil, nil, nil, "")
	assert.False(t, b.Authenticate(""))
}

func TestHashFromHex32RoundTrip(t *testing.T) {
	h, err := hashFromHex32("0x0102030000000000000000000000000000000000000000000000000000ff")
	assert.NoError(t, err)
	assert.Equal(t, byte(0x01), h[0])
	assert.Equal(t, byte(0xff), h[31])
}

func TestHashFromHex32RejectsWrongLength(t *testing.T) {
	_, err := hashFromHex32("0x0102")
	assert.Error(t, err)
}
