// Package response validates GraphQL responses against the shape declared by
// their request descriptor and extracts typed values from them.
package response

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"

	"dune-client/internal/domain"
	"dune-client/internal/request"
)

// DictResponse is a validated "data" object. Keys declared with child keys
// hold objects; keys declared without children hold whatever the service
// returned.
type DictResponse map[string]any

// Object returns the value at key when it is a JSON object.
func (r DictResponse) Object(key string) (map[string]any, bool) {
	obj, ok := r[key].(map[string]any)
	return obj, ok
}

// ListResponse is a validated "data" object whose values are all lists.
type ListResponse map[string][]any

// maxErrorBody caps how much of a non-200 body is kept in a TransportError.
const maxErrorBody = 512

// ValidateDict checks a response whose top-level values are objects with
// exactly the declared child keys. A key declared with no children is a
// terminal and its value is passed through unchecked.
func ValidateDict(status int, body []byte, shape request.KeyMap) (DictResponse, error) {
	data, err := preValidate(status, body, shape)
	if err != nil {
		return nil, err
	}
	out := make(DictResponse, len(data))
	for key, children := range shape {
		if len(children) == 0 {
			out[key] = data[key]
			continue
		}
		obj, ok := data[key].(map[string]any)
		if !ok {
			return nil, domain.ErrSchema("%q: expected object, got %s", key, typeName(data[key]))
		}
		if got := keysOf(obj); !got.Equal(children) {
			return nil, domain.ErrSchema("%q: got keys %s, expected %s", key, got, children)
		}
		out[key] = obj
	}
	return out, nil
}

// ValidateList checks a response whose every top-level value is a list.
// Only the first element of a non-empty list is checked against the
// declared child keys.
func ValidateList(status int, body []byte, shape request.KeyMap) (ListResponse, error) {
	data, err := preValidate(status, body, shape)
	if err != nil {
		return nil, err
	}
	out := make(ListResponse, len(data))
	for key, children := range shape {
		list, ok := data[key].([]any)
		if !ok {
			return nil, domain.ErrSchema("%q: expected list, got %s", key, typeName(data[key]))
		}
		if len(list) > 0 && len(children) > 0 {
			first, ok := list[0].(map[string]any)
			if !ok {
				return nil, domain.ErrSchema("%q[0]: expected object, got %s", key, typeName(list[0]))
			}
			if got := keysOf(first); !got.Equal(children) {
				return nil, domain.ErrSchema("%q[0]: got keys %s, expected %s", key, got, children)
			}
		}
		out[key] = list
	}
	return out, nil
}

// Validate dispatches to ValidateDict or ValidateList according to the
// descriptor's regime. Exactly one of the returned responses is non-nil on
// success.
func Validate(status int, body []byte, d request.Descriptor) (DictResponse, ListResponse, error) {
	if d.Regime == request.RegimeList {
		list, err := ValidateList(status, body, d.Shape)
		return nil, list, err
	}
	dict, err := ValidateDict(status, body, d.Shape)
	return dict, nil, err
}

func preValidate(status int, body []byte, shape request.KeyMap) (map[string]any, error) {
	if status != http.StatusOK {
		return nil, &domain.TransportError{StatusCode: status, Message: truncate(body)}
	}

	envelope, err := decodeObject(body)
	if err != nil {
		return nil, domain.ErrSchema("response body is not a JSON object: %v", err)
	}
	if errs, ok := envelope["errors"]; ok {
		return nil, &domain.ServiceError{Payload: errs}
	}
	rawData, ok := envelope["data"]
	if !ok {
		return nil, domain.ErrSchema("missing data key")
	}
	data, ok := rawData.(map[string]any)
	if !ok {
		return nil, domain.ErrSchema("data: expected object, got %s", typeName(rawData))
	}

	if got, want := keysOf(data), shape.Keys(); !got.Equal(want) {
		return nil, domain.ErrSchema("got keys %s, expected %s", got, want)
	}
	return data, nil
}

// decodeObject decodes a JSON object keeping numbers as json.Number so that
// large integers survive untouched.
func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("null body")
	}
	return obj, nil
}

func keysOf(obj map[string]any) request.KeySet {
	s := make(request.KeySet, len(obj))
	for k := range obj {
		s[k] = struct{}{}
	}
	return s
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "bool"
	}
	return fmt.Sprintf("%T", v)
}

func truncate(body []byte) string {
	if len(body) > maxErrorBody {
		return string(body[:maxErrorBody]) + "..."
	}
	return string(body)
}
