package nal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitStartCodes(t *testing.T) {
	t.Parallel()
	data := []byte{
		0x00, 0x00, 0x00, 0x01, 0x67, 0x42, 0xE0, 0x1E,
		0x00, 0x00, 0x01, 0x68, 0xCE, 0x38, 0x80,
		0x00, 0x00, 0x00, 0x01, 0x65, 0x88, 0x84,
	}
	units := Split(data)
	require.Equal(t, 3, len(units))

	require.Equal(t, 0, units[0].StartOffset)
	require.Equal(t, 4, units[0].StartCodeLen)
	require.Equal(t, byte(0x67), units[0].Payload[0])

	require.Equal(t, 8, units[1].StartOffset)
	require.Equal(t, 3, units[1].StartCodeLen)
	require.Equal(t, byte(0x68), units[1].Payload[0])

	require.Equal(t, byte(0x65), units[2].Payload[0])
	// Trailing unit without terminator is retained.
	require.Equal(t, []byte{0x65, 0x88, 0x84}, units[2].Payload)
}

func TestSplitLeftmostLongest(t *testing.T) {
	t.Parallel()
	// 00 00 00 01: the 4-byte form wins over the 3-byte match at +1.
	data := []byte{0x00, 0x00, 0x00, 0x01, 0x41, 0xFF}
	units := Split(data)
	require.Equal(t, 1, len(units))
	require.Equal(t, 4, units[0].StartCodeLen)
	require.Equal(t, []byte{0x41, 0xFF}, units[0].Payload)
}

func TestSplitZeroLengthSkipped(t *testing.T) {
	t.Parallel()
	// Two back-to-back start codes leave a zero-length unit.
	data := []byte{0x00, 0x00, 0x01, 0x00, 0x00, 0x01, 0x41}
	units := Split(data)
	require.Equal(t, 1, len(units))
	require.Equal(t, []byte{0x41}, units[0].Payload)
}

func TestSplitEmpty(t *testing.T) {
	t.Parallel()
	require.Nil(t, Split(nil))
	require.Nil(t, Split([]byte{0x00, 0x01}))
}

func TestStripEmulationPrevention(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"simple", []byte{0x00, 0x00, 0x03, 0x01}, []byte{0x00, 0x00, 0x01}},
		{"only real sequences collapse", []byte{0x00, 0x00, 0x03, 0x00, 0x03, 0x00}, []byte{0x00, 0x00, 0x00, 0x03, 0x00}},
		{"no epb", []byte{0x01, 0x02, 0x03}, []byte{0x01, 0x02, 0x03}},
		{"epb at end", []byte{0x41, 0x00, 0x00, 0x03}, []byte{0x41, 0x00, 0x00}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := StripEmulationPrevention(tc.in)
			require.Equal(t, tc.want, got)
			// Stripping is idempotent.
			require.Equal(t, got, StripEmulationPrevention(got))
		})
	}
}

func TestAddStripRoundTrip(t *testing.T) {
	t.Parallel()
	payloads := [][]byte{
		{0x00, 0x00, 0x01},
		{0x00, 0x00, 0x00, 0x00, 0x02},
		{0xFF, 0x00, 0x00, 0x03, 0x00},
	}
	for _, p := range payloads {
		escaped, _ := AddEmulationPrevention(p)
		require.Equal(t, p, StripEmulationPrevention(escaped))
	}
}
