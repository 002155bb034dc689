package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryValidate(t *testing.T) {
	valid := Query{ID: 42, Name: "q", RawSQL: "select 1", Network: NetworkMainnet}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(q *Query)
		errMsg string
	}{
		{"zero_id", func(q *Query) { q.ID = 0 }, "query id must be positive"},
		{"empty_sql", func(q *Query) { q.RawSQL = "" }, "empty SQL"},
		{"bad_network", func(q *Query) { q.Network = 3 }, "unsupported network"},
		{"duplicate_param", func(q *Query) {
			q.Parameters = []QueryParameter{NewTextParameter("a", "1"), NewNumberParameter("a", 1)}
		}, "duplicate parameter"},
		{"nan_number_param", func(q *Query) {
			q.Parameters = []QueryParameter{NewNumberParameter("x", math.NaN())}
		}, "not a number"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := valid.Clone()
			tc.mutate(&q)
			err := q.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestQueryClone(t *testing.T) {
	q := Query{ID: 1, Parameters: []QueryParameter{NewTextParameter("a", "x")}}
	c := q.Clone()
	c.Parameters[0] = NewTextParameter("a", "y")
	assert.Equal(t, "x", q.Parameters[0].Text())
}

func TestResultSetColumn(t *testing.T) {
	rs := &ResultSet{Rows: []Record{{"a": "1"}, {"a": "2"}, {"b": "3"}}}
	assert.Equal(t, []string{"1", "2", ""}, rs.Column("a"))
}
