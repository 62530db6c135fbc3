package negentropy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_VarInt_RoundTrips(t *testing.T) {
	t.Parallel()

	values := []uint64{0, 1, 127, 128, 16383, 16384, 1 << 20, 1<<63 - 1, maxTimestamp}

	for _, v := range values {
		encoded := appendVarInt(nil, v)
		decoded, rest, err := decodeVarInt(encoded)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, v, decoded)
	}
}

func Test_VarInt_ZeroEncodesAsSingleByte(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []byte{0x00}, appendVarInt(nil, 0))
}

func Test_VarInt_ContinuationBitsSetOnAllButLastByte(t *testing.T) {
	t.Parallel()

	encoded := appendVarInt(nil, 1<<20)
	for i := 0; i < len(encoded)-1; i++ {
		assert.NotZero(t, encoded[i]&0x80, "byte %d should have continuation bit set", i)
	}

	assert.Zero(t, encoded[len(encoded)-1]&0x80)
}

func Test_DecodeVarInt_PrematureEnd(t *testing.T) {
	t.Parallel()

	// 0x80 alone has its continuation bit set with nothing following.
	_, _, err := decodeVarInt([]byte{0x80})
	assert.ErrorIs(t, err, ErrPrematureEndOfVarInt)
}

func Test_TimestampDelta_RoundTrips(t *testing.T) {
	t.Parallel()

	sequence := []uint64{0, 5, 5, 6, 1000, maxTimestamp}

	var lastOut uint64

	var wire []byte

	for _, ts := range sequence {
		wire = encodeTimestampOut(wire, ts, &lastOut)
	}

	var lastIn uint64

	for _, want := range sequence {
		got, rest, err := decodeTimestampIn(wire, &lastIn)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		wire = rest
	}

	assert.Empty(t, wire)
}

func Test_TimestampDelta_ZeroVarIntMeansMaxU64(t *testing.T) {
	t.Parallel()

	var last uint64

	ts, _, err := decodeTimestampIn([]byte{0x00}, &last)
	require.NoError(t, err)
	assert.Equal(t, maxTimestamp, ts)
}

func Test_Bound_RoundTrips(t *testing.T) {
	t.Parallel()

	bounds := []bound{
		lowerSentinelBound(),
		{timestamp: 42, idPrefix: []byte{0xab, 0xcd}},
		{timestamp: 42, idPrefix: nil},
		upperSentinelBound(),
	}

	var lastOut uint64

	var wire []byte

	for _, b := range bounds {
		wire = encodeBound(wire, b, &lastOut)
	}

	var lastIn uint64

	for _, want := range bounds {
		got, rest, err := decodeBound(wire, &lastIn)
		require.NoError(t, err)
		assert.Equal(t, want.timestamp, got.timestamp)
		assert.Equal(t, want.idPrefix, got.idPrefix)
		wire = rest
	}
}

func Test_DecodeBound_IDPrefixTooBig(t *testing.T) {
	t.Parallel()

	var wire []byte

	var last uint64

	wire = encodeTimestampOut(wire, 1, &last)
	wire = appendVarInt(wire, 33) // claims a 33-byte prefix, over the 32 cap

	_, _, err := decodeBound(wire, &last)
	assert.ErrorIs(t, err, ErrIDTooBig)
}

func Test_Mode_RoundTrips(t *testing.T) {
	t.Parallel()

	for _, m := range []mode{modeSkip, modeFingerprint, modeIDList, modeDeprecated, modeContinuation} {
		wire := encodeMode(nil, m)
		decoded, rest, err := decodeMode(wire)
		require.NoError(t, err)
		assert.Empty(t, rest)
		assert.Equal(t, m, decoded)
	}
}

func Test_DecodeMode_UnexpectedValue(t *testing.T) {
	t.Parallel()

	wire := appendVarInt(nil, 5)

	_, _, err := decodeMode(wire)

	var unexpected *ErrUnexpectedMode
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, uint64(5), unexpected.Mode)
	assert.ErrorIs(t, err, &ErrUnexpectedMode{})
}
