package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// Flatten converts a nested record into dotted keys. Maps nest with a
// "." separator; list elements get a "_i" suffix on the parent key.
func Flatten(data map[string]any) map[string]any {
	out := make(map[string]any)
	flattenInto(out, "", data)
	return out
}

func flattenInto(out map[string]any, prefix string, value any) {
	switch v := value.(type) {
	case map[string]any:
		for k, sub := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			flattenInto(out, key, sub)
		}
	case []any:
		for i, sub := range v {
			flattenInto(out, fmt.Sprintf("%s_%d", prefix, i), sub)
		}
	default:
		out[prefix] = v
	}
}

// ToCSV writes records as one CSV row each. Columns are the sorted
// union of flattened keys across all records; missing values render
// empty. Records pass through JSON so struct tags decide field names.
func ToCSV(records []any, outputFile string) error {
	flattened := make([]map[string]any, 0, len(records))
	keySet := make(map[string]bool)
	for _, rec := range records {
		m, err := toMap(rec)
		if err != nil {
			return err
		}
		flat := Flatten(m)
		flattened = append(flattened, flat)
		for k := range flat {
			keySet[k] = true
		}
	}

	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	f, err := os.Create(outputFile)
	if err != nil {
		return errors.Wrapf(err, "create %s", outputFile)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(keys); err != nil {
		return errors.Wrap(err, "write header")
	}
	row := make([]string, len(keys))
	for _, flat := range flattened {
		for i, k := range keys {
			if v, ok := flat[k]; ok && v != nil {
				row[i] = fmt.Sprintf("%v", v)
			} else {
				row[i] = ""
			}
		}
		if err := w.Write(row); err != nil {
			return errors.Wrap(err, "write row")
		}
	}
	w.Flush()
	return errors.Wrap(w.Error(), "flush csv")
}

// toMap round-trips a value through JSON into a generic map.
func toMap(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "marshal record")
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, errors.Wrap(err, "unmarshal record")
	}
	return m, nil
}
