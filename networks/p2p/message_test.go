package p2p

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knotcoin/knotcoin/params"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Type: MsgPing, Body: []byte("hello")}
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, f.Type, got.Type)
	assert.Equal(t, f.Body, got.Body)
}

func TestWriteFrameRejectsOversizedBody(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Type: MsgBlocks, Body: make([]byte, params.MaxFrameSize)}
	err := WriteFrame(&buf, f)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameRejectsBadMagic(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{'X', 'X', 'X', 'X'})
	buf.Write([]byte{1, 0, 0, 0})
	buf.WriteByte(MsgPing)

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{0, 0, 0, 0})

	_, err := ReadFrame(&buf)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
}

func TestReadFrameRejectsTruncatedBody(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(Magic[:])
	buf.Write([]byte{5, 0, 0, 0}) // claims 5 bytes of payload
	buf.WriteByte(MsgPing)        // only 1 byte actually written

	_, err := ReadFrame(&buf)
	assert.Error(t, err)
}

func TestEmptyBodyFrameRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	f := Frame{Type: MsgGetAddr, Body: nil}
	require.NoError(t, WriteFrame(&buf, f))

	got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgGetAddr, got.Type)
	assert.Empty(t, got.Body)
}
