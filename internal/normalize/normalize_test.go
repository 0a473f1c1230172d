package normalize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeforge/judge-harness/internal/domain"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		json     string
		shape    Shape
		count    int
		strategy Strategy
	}{
		{"empty", "", "null", ShapeNull, 0, StrategyEmpty},
		{"whitespace", "  \n\t ", "null", ShapeNull, 0, StrategyEmpty},
		{"literal null", "null", "null", ShapeNull, 0, StrategyDirect},
		{"scalar", " 42 ", "42", ShapeScalar, 1, StrategyDirect},
		{"string scalar", `"a, b"`, `"a, b"`, ShapeScalar, 1, StrategyDirect},
		{"single array", "[2,7,11,15,9]", "[2,7,11,15,9]", ShapeArray, 5, StrategyDirect},
		{"multi argument", "[2,7,11,15], 9", "[[2,7,11,15],9]", ShapeArray, 2, StrategyWrapped},
		{"bare scalars", "1, 2, 3", "[1,2,3]", ShapeArray, 3, StrategyWrapped},
		{"object", `{"n": 5}`, `{"n":5}`, ShapeObject, 1, StrategyDirect},
		{"trailing comma object", `{"a":1,}`, `{"a":1}`, ShapeObject, 1, StrategyTrailingComma},
		{"trailing comma nested", "[[1,2,],[3,],]", "[[1,2],[3]]", ShapeArray, 2, StrategyTrailingComma},
		{"trailing comma after wrap", "[1,2,], 3,", "[[1,2],3]", ShapeArray, 2, StrategyWrapped},
		{"comma inside string kept", `{"s":"a,}"}`, `{"s":"a,}"}`, ShapeObject, 1, StrategyDirect},
		{"escaped quote", `"say \"hi\", ok", 1`, `["say \"hi\", ok",1]`, ShapeArray, 2, StrategyWrapped},
		{"number text preserved", "[1.50, 1e3]", "[1.50,1e3]", ShapeArray, 2, StrategyDirect},
		{"key order preserved", `{"b":1,"a":2}`, `{"b":1,"a":2}`, ShapeObject, 2, StrategyDirect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args, err := Normalize(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.json, args.JSON)
			assert.Equal(t, tt.shape, args.Shape)
			assert.Equal(t, tt.count, args.Count)
			assert.Equal(t, tt.strategy, args.Strategy)
		})
	}
}

func TestNormalize_Malformed(t *testing.T) {
	for _, raw := range []string{"[1, 2", "{a:1}", "1 2", `"unterminated`, "]["} {
		t.Run(raw, func(t *testing.T) {
			_, err := Normalize(raw)
			require.Error(t, err)

			var malformed *domain.MalformedInputError
			require.True(t, errors.As(err, &malformed))
			assert.Equal(t, raw, malformed.Input)
		})
	}
}

func TestNormalize_FixedPoint(t *testing.T) {
	inputs := []string{
		"", "7", `"x"`, "[2,7,11,15], 9", `{"a":1,}`, `{"b": [1, 2, ], "a": {"c": null}}`,
		`"tab\there", [true, false]`, "[ ]", "{ }", "-0.0, 1E-7",
	}
	for _, raw := range inputs {
		first, err := Normalize(raw)
		require.NoError(t, err, raw)

		second, err := Normalize(first.JSON)
		require.NoError(t, err, raw)
		assert.Equal(t, first.JSON, second.JSON, raw)
		assert.Equal(t, first.Shape, second.Shape, raw)
		assert.Equal(t, first.Count, second.Count, raw)
	}
}

func TestTopLevelCommas(t *testing.T) {
	assert.True(t, TopLevelCommas("[1], 2"))
	assert.True(t, TopLevelCommas(`"a", "b"`))
	assert.False(t, TopLevelCommas("[1, 2]"))
	assert.False(t, TopLevelCommas(`{"a": 1, "b": 2}`))
	assert.False(t, TopLevelCommas(`"a, b"`))
	assert.False(t, TopLevelCommas(`"a\", b"`))
	assert.True(t, TopLevelCommas(`"a\\", b`))
}

func TestStripTrailingCommas(t *testing.T) {
	assert.Equal(t, "[1,2]", StripTrailingCommas("[1,2,]"))
	assert.Equal(t, "{\"a\":1\n}", StripTrailingCommas("{\"a\":1,\n}"))
	assert.Equal(t, `["x,]"]`, StripTrailingCommas(`["x,]",]`))
	assert.Equal(t, "1, 2,", StripTrailingCommas("1, 2,"))
}
