package counter

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"runcount/common"
)

func TestCounterRoundTrip(t *testing.T) {
	values := []uint64{0, 1, math.MaxUint32, math.MaxUint64}
	for _, v := range values {
		image := make([]byte, 64)
		require.NoError(t, WriteCounter(image, 16, 8, v))

		got, err := ReadCounter(image, 16, 8)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestCounterIsLittleEndian(t *testing.T) {
	image := make([]byte, 16)
	require.NoError(t, WriteCounter(image, 4, 4, 0x0102030405060708))
	require.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, image[8:16])
	require.Equal(t, uint64(0x0102030405060708), binary.LittleEndian.Uint64(image[8:]))
}

func TestCounterWindowTouchesOnlyEightBytes(t *testing.T) {
	image := make([]byte, 32)
	for i := range image {
		image[i] = 0xaa
	}
	require.NoError(t, WriteCounter(image, 0, 12, 0))
	for i, b := range image {
		if i >= 12 && i < 20 {
			require.Zero(t, b)
			continue
		}
		require.Equal(t, byte(0xaa), b, "byte %d", i)
	}
}

func TestCounterBounds(t *testing.T) {
	image := make([]byte, 16)

	_, err := ReadCounter(image, 8, 1)
	require.ErrorIs(t, err, common.ErrBounds)

	require.ErrorIs(t, WriteCounter(image, 16, 0, 1), common.ErrBounds)
	require.ErrorIs(t, WriteCounter(image, 0, 100, 1), common.ErrBounds)

	_, err = ReadCounter(image, math.MaxUint64, 2)
	require.ErrorIs(t, err, common.ErrBounds)

	// the last window that fits
	require.NoError(t, WriteCounter(image, 4, 4, 9))
}
