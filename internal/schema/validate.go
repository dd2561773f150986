// ABOUTME: Argument validation against a tool's rendered JSON Schema.
// ABOUTME: Wraps gojsonschema so callers get one error listing every violation.

package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrInvalid is returned when a document does not satisfy its schema.
var ErrInvalid = errors.New("arguments do not match schema")

// Validate checks a JSON document against s. An empty document is treated as {}.
func Validate(s *Schema, doc json.RawMessage) error {
	if len(doc) == 0 || string(doc) == "null" {
		doc = json.RawMessage("{}")
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(ToJSONSchema(s)),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if result.Valid() {
		return nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		violations = append(violations, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(violations, "; "))
}
