package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryParameterWire(t *testing.T) {
	tests := []struct {
		name  string
		param QueryParameter
		want  ParameterWire
	}{
		{
			name:  "number_integer",
			param: NewNumberParameter("Number", 1),
			want:  ParameterWire{Key: "Number", Type: "number", Value: "1"},
		},
		{
			name:  "number_fraction",
			param: NewNumberParameter("Ratio", 0.25),
			want:  ParameterWire{Key: "Ratio", Type: "number", Value: "0.25"},
		},
		{
			name:  "text",
			param: NewTextParameter("Text", "hello"),
			want:  ParameterWire{Key: "Text", Type: "text", Value: "hello"},
		},
		{
			name:  "date_midnight",
			param: NewDateParameter("Date", time.Date(2022, 3, 10, 0, 0, 0, 0, time.UTC)),
			want:  ParameterWire{Key: "Date", Type: "datetime", Value: "2022-03-10 00:00:00"},
		},
		{
			name:  "date_with_time",
			param: NewDateParameter("Date", time.Date(2022, 3, 10, 12, 30, 30, 0, time.UTC)),
			want:  ParameterWire{Key: "Date", Type: "datetime", Value: "2022-03-10 12:30:30"},
		},
		{
			name:  "date_converted_to_utc",
			param: NewDateParameter("Date", time.Date(2022, 3, 10, 14, 30, 30, 0, time.FixedZone("CEST", 2*3600))),
			want:  ParameterWire{Key: "Date", Type: "datetime", Value: "2022-03-10 12:30:30"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.param.Wire())
		})
	}
}

func TestQueryParameterRoundTrip(t *testing.T) {
	params := []QueryParameter{
		NewTextParameter("t", ""),
		NewTextParameter("t", "0xdeadbeef"),
		NewNumberParameter("n", 0),
		NewNumberParameter("n", -42),
		NewNumberParameter("n", 3.14159),
		NewNumberParameter("n", 1e21),
		NewDateParameter("d", time.Date(2021, 12, 31, 23, 59, 59, 0, time.UTC)),
		NewDateParameter("d", time.Date(2022, 1, 1, 0, 0, 0, 999_000_000, time.UTC)),
	}
	for _, p := range params {
		t.Run(p.String(), func(t *testing.T) {
			got, err := ParseParameter(p.Wire().Map())
			require.NoError(t, err)
			assert.True(t, p.Equal(got), "got %s, want %s", got, p)
		})
	}
}

func TestQueryParameterRoundTrip_LargeIntegers(t *testing.T) {
	for _, text := range []string{"1000000000000000001", "12345678901234567891", "-9007199254740993"} {
		t.Run(text, func(t *testing.T) {
			p, err := ParseParameter(map[string]any{"key": "n", "type": "number", "value": text})
			require.NoError(t, err)
			assert.Equal(t, text, p.Wire().Value)

			got, err := ParseParameter(p.Wire().Map())
			require.NoError(t, err)
			assert.Equal(t, text, got.ValueString())
			assert.True(t, p.Equal(got))
		})
	}

	t.Run("json_number", func(t *testing.T) {
		var p QueryParameter
		require.NoError(t, json.Unmarshal([]byte(`{"key":"n","type":"number","value":1000000000000000001}`), &p))
		assert.Equal(t, "1000000000000000001", p.ValueString())
	})

	t.Run("neighbours_differ", func(t *testing.T) {
		a, err := ParseNumberParameter("n", "1000000000000000001")
		require.NoError(t, err)
		b, err := ParseNumberParameter("n", "1000000000000000000")
		require.NoError(t, err)
		assert.False(t, a.Equal(b))
	})
}

func TestQueryParameterEqual_NumericValue(t *testing.T) {
	a, err := ParseNumberParameter("n", "1.50")
	require.NoError(t, err)
	assert.True(t, a.Equal(NewNumberParameter("n", 1.5)))
	assert.Equal(t, "1.50", a.ValueString())
}

func TestNumberParameter_NonFinite(t *testing.T) {
	for _, value := range []any{"NaN", "Inf", "-Inf", "+Infinity", "0x1p4", "1e400", math.NaN(), math.Inf(1), math.Inf(-1)} {
		t.Run(fmt.Sprint(value), func(t *testing.T) {
			_, err := ParseParameter(map[string]any{"key": "n", "type": "number", "value": value})
			require.Error(t, err)
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}

	t.Run("constructor_caught_by_validate", func(t *testing.T) {
		p := NewNumberParameter("n", math.NaN())
		var parseErr *ParseError
		assert.ErrorAs(t, p.Validate(), &parseErr)
		assert.NoError(t, NewNumberParameter("n", 1e-320).Validate())
	})
}

func TestParseParameter_Coercion(t *testing.T) {
	t.Run("number_from_float", func(t *testing.T) {
		p, err := ParseParameter(map[string]any{"key": "n", "type": "number", "value": 2.5})
		require.NoError(t, err)
		assert.Equal(t, 2.5, p.Number())
	})

	t.Run("number_from_json_number", func(t *testing.T) {
		p, err := ParseParameter(map[string]any{"key": "n", "type": "number", "value": json.Number("7")})
		require.NoError(t, err)
		assert.Equal(t, "7", p.ValueString())
	})

	t.Run("date_from_time", func(t *testing.T) {
		ts := time.Date(2022, 3, 10, 12, 30, 30, 0, time.UTC)
		p, err := ParseParameter(map[string]any{"key": "d", "type": "datetime", "value": ts})
		require.NoError(t, err)
		assert.True(t, ts.Equal(p.Date()))
	})
}

func TestParseParameter_Errors(t *testing.T) {
	tests := []struct {
		name string
		obj  map[string]any
	}{
		{"unknown_type", map[string]any{"key": "k", "type": "enum", "value": "x"}},
		{"missing_key", map[string]any{"type": "text", "value": "x"}},
		{"missing_value", map[string]any{"key": "k", "type": "text"}},
		{"non_numeric_number", map[string]any{"key": "k", "type": "number", "value": "abc"}},
		{"date_wrong_pattern", map[string]any{"key": "k", "type": "datetime", "value": "2022-03-10T12:30:30Z"}},
		{"date_wrong_type", map[string]any{"key": "k", "type": "datetime", "value": 12}},
		{"text_not_string", map[string]any{"key": "k", "type": "text", "value": 12}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseParameter(tc.obj)
			require.Error(t, err)
			var parseErr *ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestQueryParameterJSON(t *testing.T) {
	in := []QueryParameter{
		NewTextParameter("Text", "hello"),
		NewNumberParameter("Number", 10),
		NewDateParameter("Date", time.Date(2022, 3, 10, 0, 0, 0, 0, time.UTC)),
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `[
		{"key":"Text","type":"text","value":"hello"},
		{"key":"Number","type":"number","value":"10"},
		{"key":"Date","type":"datetime","value":"2022-03-10 00:00:00"}
	]`, string(data))

	var out []QueryParameter
	require.NoError(t, json.Unmarshal(data, &out))
	require.Len(t, out, 3)
	for i := range in {
		assert.True(t, in[i].Equal(out[i]))
	}

	var numeric QueryParameter
	require.NoError(t, json.Unmarshal([]byte(`{"key":"n","type":"number","value":12.5}`), &numeric))
	assert.Equal(t, 12.5, numeric.Number())
}
