// Package export serializes parsed media records to CSV and JSON.
package export

import (
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ToJSON writes records as indented UTF-8 JSON. Byte slices marshal to
// base64 strings per encoding/json semantics, which jsoniter follows.
func ToJSON(data any, outputFile string) error {
	f, err := os.Create(outputFile)
	if err != nil {
		return errors.Wrapf(err, "create %s", outputFile)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "    ")
	if err := enc.Encode(data); err != nil {
		return errors.Wrap(err, "encode json")
	}
	return nil
}
