package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFlattenNested(t *testing.T) {
	t.Parallel()
	in := map[string]any{
		"file_path": "/a/b.mp4",
		"container": map[string]any{
			"ftyp": map[string]any{"major": "isom"},
		},
		"streams": []any{
			map[string]any{"codec": "H.264"},
			map[string]any{"codec": "H.265"},
		},
	}
	flat := Flatten(in)
	require.Equal(t, "/a/b.mp4", flat["file_path"])
	require.Equal(t, "isom", flat["container.ftyp.major"])
	require.Equal(t, "H.264", flat["streams_0.codec"])
	require.Equal(t, "H.265", flat["streams_1.codec"])
}

func TestToCSVSortedUnionMissingEmpty(t *testing.T) {
	t.Parallel()
	records := []any{
		map[string]any{"b": 2, "a": 1},
		map[string]any{"c": "x", "a": 3},
	}
	out := filepath.Join(t.TempDir(), "out.csv")
	require.Nil(t, ToCSV(records, out))

	f, err := os.Open(out)
	require.Nil(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.Nil(t, err)
	require.Equal(t, 3, len(rows))
	require.Equal(t, []string{"a", "b", "c"}, rows[0])
	require.Equal(t, []string{"1", "2", ""}, rows[1])
	require.Equal(t, []string{"3", "", "x"}, rows[2])
}

func TestToJSONBase64Bytes(t *testing.T) {
	t.Parallel()
	out := filepath.Join(t.TempDir(), "out.json")
	payload := map[string]any{
		"name": "clip",
		"blob": []byte{0x00, 0x01, 0x02},
	}
	require.Nil(t, ToJSON(payload, out))

	data, err := os.ReadFile(out)
	require.Nil(t, err)
	text := string(data)
	require.Contains(t, text, `"name": "clip"`)
	// 00 01 02 encodes to AAEC.
	require.Contains(t, text, `"AAEC"`)
}

func TestTrimPayloads(t *testing.T) {
	t.Parallel()
	m := map[string]any{
		"VideoStreams": []any{
			map[string]any{
				"H264": map[string]any{
					"NALUnits": []any{
						map[string]any{"Data": "base64stuff", "RawData": "morebase64", "NalUnitType": float64(7)},
					},
				},
			},
		},
	}
	TrimPayloads(m)
	nal := m["VideoStreams"].([]any)[0].(map[string]any)["H264"].(map[string]any)["NALUnits"].([]any)[0].(map[string]any)
	require.Equal(t, "skip", nal["Data"])
	require.Equal(t, "skip", nal["RawData"])
	require.Equal(t, float64(7), nal["NalUnitType"])
}

func TestToCSVValuesRenderPlainly(t *testing.T) {
	t.Parallel()
	records := []any{
		map[string]any{"n": 1.5, "s": "a,b", "t": true},
	}
	out := filepath.Join(t.TempDir(), "q.csv")
	require.Nil(t, ToCSV(records, out))
	data, err := os.ReadFile(out)
	require.Nil(t, err)
	require.True(t, strings.Contains(string(data), `"a,b"`))
}
