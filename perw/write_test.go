package perw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"runcount/common"
)

func TestWriteAtOffsetRoundTrip(t *testing.T) {
	buf := make([]byte, 32)
	for _, v := range []uint64{0, 1, math.MaxUint32, math.MaxUint64} {
		require.NoError(t, WriteAtOffset(buf, 8, v))
		got, err := ReadUint64At(buf, 8)
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestWriteAtOffsetLittleEndian(t *testing.T) {
	buf := make([]byte, 8)
	require.NoError(t, WriteAtOffset(buf, 0, 0x0102030405060708))
	require.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, buf)
}

func TestWriteAtOffsetBounds(t *testing.T) {
	buf := make([]byte, 8)
	require.ErrorIs(t, WriteAtOffset(buf, 1, 1), common.ErrBounds)
	require.ErrorIs(t, WriteAtOffset(buf, 9, 1), common.ErrBounds)
	require.ErrorIs(t, WriteAtOffset(buf, math.MaxUint64, 1), common.ErrBounds)
	require.NoError(t, WriteAtOffset(buf, 0, 1))

	_, err := ReadUint64At(buf, math.MaxUint64)
	require.ErrorIs(t, err, common.ErrBounds)
}
