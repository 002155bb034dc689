// Package request builds the outgoing GraphQL payloads for every operation
// the client performs, together with the response shape each one expects.
package request

import (
	"slices"
	"strings"
)

// Operation names sent as operationName.
const (
	OperationUpsertQuery            = "UpsertQuery"
	OperationExecuteQuery           = "ExecuteQuery"
	OperationGetResult              = "GetResult"
	OperationFindResultDataByResult = "FindResultDataByResult"
	OperationFindDashboard          = "FindDashboard"
	OperationFindQuery              = "FindQuery"
)

// GraphQLRequest is the JSON body of every call to the GraphQL endpoint.
// Query is an opaque document string.
type GraphQLRequest struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

// KeySet is a set of JSON object keys.
type KeySet map[string]struct{}

// NewKeySet builds a KeySet from keys.
func NewKeySet(keys ...string) KeySet {
	s := make(KeySet, len(keys))
	for _, k := range keys {
		s[k] = struct{}{}
	}
	return s
}

// Has reports whether k is in the set.
func (s KeySet) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the keys in lexical order.
func (s KeySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Equal reports whether both sets hold exactly the same keys.
func (s KeySet) Equal(other KeySet) bool {
	if len(s) != len(other) {
		return false
	}
	for k := range s {
		if !other.Has(k) {
			return false
		}
	}
	return true
}

func (s KeySet) String() string {
	return "{" + strings.Join(s.Sorted(), ", ") + "}"
}

// KeyMap maps every expected top-level key under "data" to the keys of its
// value. For list-shaped values the children describe the first element.
// An empty child set means the value is terminal and not checked further.
type KeyMap map[string]KeySet

// Keys returns the top-level keys as a KeySet.
func (m KeyMap) Keys() KeySet {
	s := make(KeySet, len(m))
	for k := range m {
		s[k] = struct{}{}
	}
	return s
}

// Regime selects how every value in a KeyMap is checked.
type Regime int

// Validation regimes.
const (
	RegimeDict Regime = iota
	RegimeList
)

func (r Regime) String() string {
	if r == RegimeList {
		return "list"
	}
	return "dict"
}

// Descriptor pairs a request payload with the response shape it must produce.
// Shape depends only on the operation, never on request contents.
type Descriptor struct {
	Payload GraphQLRequest
	Shape   KeyMap
	Regime  Regime
}

// Operation returns the descriptor's operation name.
func (d Descriptor) Operation() string { return d.Payload.OperationName }
