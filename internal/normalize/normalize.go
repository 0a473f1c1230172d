// Package normalize repairs loosely structured test inputs into canonical
// JSON argument lists.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"

	"github.com/codeforge/judge-harness/internal/domain"
)

// Shape classifies a normalized value for argument dispatch.
type Shape string

const (
	ShapeNull   Shape = "null"
	ShapeScalar Shape = "scalar"
	ShapeArray  Shape = "array"
	ShapeObject Shape = "object"
)

// Strategy names the repair that produced a normalized value.
type Strategy string

const (
	StrategyEmpty         Strategy = "empty"
	StrategyDirect        Strategy = "direct"
	StrategyTrailingComma Strategy = "trailing_comma"
	StrategyWrapped       Strategy = "wrapped"
)

var errNoStrategy = errors.New("no repair strategy produced valid JSON")

// Arguments is a canonical JSON argument list.
type Arguments struct {
	JSON     string
	Shape    Shape
	Count    int
	Strategy Strategy
}

// Null is the empty argument list.
var Null = Arguments{JSON: "null", Shape: ShapeNull, Strategy: StrategyEmpty}

// Normalize parses raw, repairing trailing commas and bare comma-separated
// argument lists. Normalizing the JSON of a result yields the same result.
func Normalize(raw string) (Arguments, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Null, nil
	}

	if args, ok := canonical(trimmed); ok {
		args.Strategy = StrategyDirect
		return args, nil
	}

	stripped := StripTrailingCommas(trimmed)
	if stripped != trimmed {
		if args, ok := canonical(stripped); ok {
			args.Strategy = StrategyTrailingComma
			return args, nil
		}
	}

	if TopLevelCommas(stripped) {
		wrapped := StripTrailingCommas("[" + stripped + "]")
		if args, ok := canonical(wrapped); ok {
			args.Strategy = StrategyWrapped
			return args, nil
		}
	}

	return Arguments{}, &domain.MalformedInputError{Input: raw, Err: errNoStrategy}
}

func canonical(text string) (Arguments, bool) {
	if !json.Valid([]byte(text)) {
		return Arguments{}, false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, []byte(text)); err != nil {
		return Arguments{}, false
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(buf.Bytes()))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return Arguments{}, false
	}
	args := Arguments{JSON: buf.String()}

	switch val := v.(type) {
	case nil:
		args.Shape = ShapeNull
	case []any:
		args.Shape = ShapeArray
		args.Count = len(val)
	case map[string]any:
		args.Shape = ShapeObject
		args.Count = len(val)
	default:
		args.Shape = ShapeScalar
		args.Count = 1
	}
	return args, true
}
