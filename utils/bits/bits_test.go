package bits

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadBitsMSBFirst(t *testing.T) {
	t.Parallel()
	r := NewReader([]byte{0xA5, 0xF0})
	v, err := r.ReadBits(4)
	require.Nil(t, err)
	require.Equal(t, uint64(0xA), v)
	v, err = r.ReadBits(8)
	require.Nil(t, err)
	require.Equal(t, uint64(0x5F), v)
	require.Equal(t, 4, r.BitsLeft())
}

func TestReadBitsPastEnd(t *testing.T) {
	t.Parallel()
	r := NewReader([]byte{0xFF})
	_, err := r.ReadBits(9)
	require.NotNil(t, err)

	r = NewReader(nil)
	_, err = r.ReadBit()
	require.NotNil(t, err)
}

func TestReadUEKnownValues(t *testing.T) {
	t.Parallel()
	// 1 | 010 | 011 | 00100 -> 0, 1, 2, 3
	r := NewReader([]byte{0b10100110, 0b01000000})
	for want := uint(0); want < 4; want++ {
		v, err := r.ReadUE()
		require.Nil(t, err)
		require.Equal(t, want, v)
	}
}

func TestReadSEKnownValues(t *testing.T) {
	t.Parallel()
	// ue k -> se: 0->0, 1->1, 2->-1, 3->2, 4->-2
	w := NewWriter()
	for k := uint(0); k < 5; k++ {
		w.WriteUE(k)
	}
	r := NewReader(w.Bytes())
	want := []int{0, 1, -1, 2, -2}
	for _, expected := range want {
		v, err := r.ReadSE()
		require.Nil(t, err)
		require.Equal(t, expected, v)
	}
}

func TestExpGolombRoundTrip(t *testing.T) {
	t.Parallel()
	values := []uint{0, 1, 2, 3, 7, 8, 255, 1 << 16, 1<<31 - 1, 1<<32 - 2}
	w := NewWriter()
	for _, v := range values {
		w.WriteUE(v)
	}
	r := NewReader(w.Bytes())
	for _, v := range values {
		got, err := r.ReadUE()
		require.Nil(t, err)
		require.Equal(t, v, got)
	}
}

func TestSignedExpGolombRoundTrip(t *testing.T) {
	t.Parallel()
	values := []int{0, 1, -1, 2, -2, 127, -128, 1 << 20, -(1 << 20)}
	w := NewWriter()
	for _, v := range values {
		w.WriteSE(v)
	}
	r := NewReader(w.Bytes())
	for _, v := range values {
		got, err := r.ReadSE()
		require.Nil(t, err)
		require.Equal(t, v, got)
	}
}

func TestReadUETooManyZeros(t *testing.T) {
	t.Parallel()
	r := NewReader([]byte{0, 0, 0, 0, 0})
	_, err := r.ReadUE()
	require.NotNil(t, err)
}

func TestAlignment(t *testing.T) {
	t.Parallel()
	r := NewReader([]byte{0xFF, 0x0F})
	require.True(t, r.ByteAligned())
	r.ReadBits(3)
	require.False(t, r.ByteAligned())
	r.AlignToByte()
	require.True(t, r.ByteAligned())
	v, err := r.ReadBits(8)
	require.Nil(t, err)
	require.Equal(t, uint64(0x0F), v)
}

func TestMoreRBSPData(t *testing.T) {
	t.Parallel()
	// One data bit, stop bit, zero padding: 1 1 000000
	r := NewReader([]byte{0b11000000})
	require.True(t, r.MoreRBSPData())
	r.ReadBit()
	// Only the stop bit remains.
	require.False(t, r.MoreRBSPData())

	// All zeros: nothing left.
	r = NewReader([]byte{0x00})
	require.False(t, r.MoreRBSPData())
}
