package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParameterType is the type tag of a query parameter on the wire.
type ParameterType string

// Parameter types understood by the service.
const (
	ParameterTypeText   ParameterType = "text"
	ParameterTypeNumber ParameterType = "number"
	ParameterTypeDate   ParameterType = "datetime"
)

// ParameterDateLayout is the wire layout of date parameter values. Values are
// UTC and carry no zone suffix.
const ParameterDateLayout = "2006-01-02 15:04:05"

// decimalPattern matches plain decimal numbers with an optional exponent.
// NaN, Inf and hex forms accepted by strconv do not match.
var decimalPattern = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// ParseParameterType maps a wire type string to a ParameterType.
func ParseParameterType(s string) (ParameterType, error) {
	switch t := ParameterType(s); t {
	case ParameterTypeText, ParameterTypeNumber, ParameterTypeDate:
		return t, nil
	}
	return "", ErrParse("unknown parameter type %q", s)
}

// QueryParameter is a typed query parameter. Build one with
// NewTextParameter, NewNumberParameter or NewDateParameter.
type QueryParameter struct {
	Key  string
	Type ParameterType

	text string
	date time.Time
}

// ParameterWire is the serialized form of a QueryParameter.
type ParameterWire struct {
	Key   string        `json:"key" yaml:"key"`
	Type  ParameterType `json:"type" yaml:"type"`
	Value string        `json:"value" yaml:"value"`
}

// NewTextParameter constructs a text parameter.
func NewTextParameter(key, value string) QueryParameter {
	return QueryParameter{Key: key, Type: ParameterTypeText, text: value}
}

// NewNumberParameter constructs a number parameter from a float. NaN and
// infinities yield a parameter that Validate rejects; use
// ParseNumberParameter for integers beyond 2^53.
func NewNumberParameter(key string, value float64) QueryParameter {
	return QueryParameter{Key: key, Type: ParameterTypeNumber, text: formatFloat(value)}
}

// ParseNumberParameter constructs a number parameter from decimal text. The
// text is kept as given, so no precision is lost on the wire.
func ParseNumberParameter(key, value string) (QueryParameter, error) {
	text, err := canonicalNumber(value)
	if err != nil {
		return QueryParameter{}, ErrParse("parameter %q: %v", key, err)
	}
	return QueryParameter{Key: key, Type: ParameterTypeNumber, text: text}, nil
}

// NewDateParameter constructs a date parameter. The value is converted to
// UTC and truncated to whole seconds, the precision of the wire format.
func NewDateParameter(key string, value time.Time) QueryParameter {
	return QueryParameter{Key: key, Type: ParameterTypeDate, date: value.UTC().Truncate(time.Second)}
}

// Text returns the value of a text parameter.
func (p QueryParameter) Text() string { return p.text }

// Number returns the value of a number parameter as a float. Use
// ValueString for the exact decimal text.
func (p QueryParameter) Number() float64 {
	f, _ := strconv.ParseFloat(p.text, 64)
	return f
}

// Date returns the value of a date parameter.
func (p QueryParameter) Date() time.Time { return p.date }

// ValueString renders the parameter value in its wire form.
func (p QueryParameter) ValueString() string {
	if p.Type == ParameterTypeDate {
		return p.date.Format(ParameterDateLayout)
	}
	return p.text
}

// Validate checks that the parameter carries a usable value. Only number
// parameters built from a non-finite float can fail.
func (p QueryParameter) Validate() error {
	if p.Type != ParameterTypeNumber {
		return nil
	}
	if _, err := canonicalNumber(p.text); err != nil {
		return ErrParse("parameter %q: %v", p.Key, err)
	}
	return nil
}

// Wire serializes the parameter.
func (p QueryParameter) Wire() ParameterWire {
	return ParameterWire{Key: p.Key, Type: p.Type, Value: p.ValueString()}
}

// Map returns the wire form as a generic map, the shape accepted by ParseParameter.
func (w ParameterWire) Map() map[string]any {
	return map[string]any{"key": w.Key, "type": string(w.Type), "value": w.Value}
}

// Equal reports whether two parameters have the same key, type and value.
func (p QueryParameter) Equal(other QueryParameter) bool {
	if p.Key != other.Key || p.Type != other.Type {
		return false
	}
	switch p.Type {
	case ParameterTypeNumber:
		return numbersEqual(p.text, other.text)
	case ParameterTypeDate:
		return p.date.Equal(other.date)
	default:
		return p.text == other.text
	}
}

func (p QueryParameter) String() string {
	return fmt.Sprintf("%s(%s)=%s", p.Key, p.Type, p.ValueString())
}

// ParseParameter builds a QueryParameter from its generic decoded form.
// Dates accept a time.Time or a string in ParameterDateLayout. Numbers accept
// any Go numeric, json.Number or a numeric string.
func ParseParameter(obj map[string]any) (QueryParameter, error) {
	key, ok := obj["key"].(string)
	if !ok || key == "" {
		return QueryParameter{}, ErrParse("parameter key must be a non-empty string")
	}
	rawType, ok := obj["type"].(string)
	if !ok {
		return QueryParameter{}, ErrParse("parameter %q: type must be a string", key)
	}
	typ, err := ParseParameterType(rawType)
	if err != nil {
		return QueryParameter{}, fmt.Errorf("parameter %q: %w", key, err)
	}
	value, present := obj["value"]
	if !present || value == nil {
		return QueryParameter{}, ErrParse("parameter %q: missing value", key)
	}

	switch typ {
	case ParameterTypeText:
		s, ok := value.(string)
		if !ok {
			return QueryParameter{}, ErrParse("parameter %q: text value must be a string, got %T", key, value)
		}
		return NewTextParameter(key, s), nil
	case ParameterTypeNumber:
		text, err := coerceNumber(value)
		if err != nil {
			return QueryParameter{}, ErrParse("parameter %q: %v", key, err)
		}
		return QueryParameter{Key: key, Type: ParameterTypeNumber, text: text}, nil
	default:
		t, err := coerceDate(value)
		if err != nil {
			return QueryParameter{}, ErrParse("parameter %q: %v", key, err)
		}
		return NewDateParameter(key, t), nil
	}
}

// coerceNumber returns the canonical decimal text of a numeric value.
func coerceNumber(v any) (string, error) {
	switch n := v.(type) {
	case float64:
		return finiteText(n)
	case float32:
		return finiteText(float64(n))
	case int:
		return strconv.Itoa(n), nil
	case int64:
		return strconv.FormatInt(n, 10), nil
	case uint64:
		return strconv.FormatUint(n, 10), nil
	case json.Number:
		return canonicalNumber(n.String())
	case string:
		return canonicalNumber(n)
	}
	return "", fmt.Errorf("number value has unsupported type %T", v)
}

func finiteText(f float64) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("number must be finite, got %v", f)
	}
	return formatFloat(f), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// canonicalNumber trims s and checks that it is a finite decimal number.
func canonicalNumber(s string) (string, error) {
	text := strings.TrimSpace(s)
	if !decimalPattern.MatchString(text) {
		return "", fmt.Errorf("not a number: %q", s)
	}
	// Underflow rounds to zero and is accepted; overflow is not.
	if f, err := strconv.ParseFloat(text, 64); err != nil && math.IsInf(f, 0) {
		return "", fmt.Errorf("number out of range: %q", s)
	}
	return text, nil
}

func numbersEqual(a, b string) bool {
	if a == b {
		return true
	}
	ra, okA := new(big.Rat).SetString(a)
	rb, okB := new(big.Rat).SetString(b)
	return okA && okB && ra.Cmp(rb) == 0
}

func coerceDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		t, err := time.ParseInLocation(ParameterDateLayout, d, time.UTC)
		if err != nil {
			return time.Time{}, fmt.Errorf("date %q does not match %q", d, ParameterDateLayout)
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("date value has unsupported type %T", v)
}

// MarshalJSON encodes the parameter in its wire form.
func (p QueryParameter) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Wire())
}

// UnmarshalJSON decodes a parameter from its wire form. Numeric values may
// appear as JSON numbers as well as strings.
func (p *QueryParameter) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return ErrParse("decode parameter: %v", err)
	}
	parsed, err := ParseParameter(obj)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// UnmarshalYAML decodes a parameter from a YAML mapping.
func (p *QueryParameter) UnmarshalYAML(unmarshal func(any) error) error {
	var obj map[string]any
	if err := unmarshal(&obj); err != nil {
		return err
	}
	parsed, err := ParseParameter(obj)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
