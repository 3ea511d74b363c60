package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

var ErrNotObject = errors.New("document: top level must be an object")

// Parse strips JSONC comments and trailing commas from data, then decodes a
// JSON object.
func Parse(data []byte) (map[string]any, error) {
	stripped := jsonc.ToJSON(data)

	var out map[string]any
	if err := json.Unmarshal(stripped, &out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: got %s", ErrNotObject, typeErr.Value)
		}
		return nil, fmt.Errorf("parsing document: %w", err)
	}
	if out == nil {
		return nil, ErrNotObject
	}
	return out, nil
}

// Load reads and parses a JSONC document from disk.
func Load(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}
