package response

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dune-client/internal/domain"
	"dune-client/internal/request"
)

const metadataJSON = `{
	"id": "3158cc2c-5ed1-4779-b523-eeb9c3b34b21",
	"job_id": "093e440d-66ce-4c00-81ec-2406f0403bc0",
	"error": null,
	"runtime": 1520,
	"generated_at": "2022-03-19T07:11:37.344998+00:00",
	"columns": ["number", "size", "time", "block_hash", "tx_fees"]
}`

func fetchResponse(t *testing.T, body string) ListResponse {
	t.Helper()
	resp, err := ValidateList(http.StatusOK, []byte(body), request.FetchResults("r").Shape)
	require.NoError(t, err)
	return resp
}

func TestExtract(t *testing.T) {
	resp := fetchResponse(t, `{"data": {
		"query_results": [`+metadataJSON+`],
		"get_result_by_result_id": [
			{"data": {"number": 14412971, "size": 1024, "block_hash": "0xaa", "tx_fees": null}},
			{"data": {"number": 14412972, "size": 99.5, "block_hash": "0xbb", "tx_fees": {"eth": 1}}},
			{"data": {"number": 14412970, "size": 1, "block_hash": "0xcc", "tx_fees": true}}
		]
	}}`)

	rs, err := Extract(resp)
	require.NoError(t, err)

	assert.Equal(t, "3158cc2c-5ed1-4779-b523-eeb9c3b34b21", rs.Meta.ID)
	assert.Equal(t, "093e440d-66ce-4c00-81ec-2406f0403bc0", rs.Meta.JobID)
	assert.Nil(t, rs.Meta.Error)
	assert.Equal(t, int64(1520), rs.Meta.RuntimeMs)
	assert.True(t, time.Date(2022, 3, 19, 7, 11, 37, 344998000, time.UTC).Equal(rs.Meta.GeneratedAt))
	assert.Equal(t, "2022-03-19T07:11:37.344998+00:00", rs.Meta.GeneratedAtRaw)
	assert.Equal(t, []string{"number", "size", "time", "block_hash", "tx_fees"}, rs.Meta.Columns)

	require.Len(t, rs.Rows, 3)
	assert.Equal(t, []string{"14412971", "14412972", "14412970"}, rs.Column("number"))
	assert.Equal(t, "99.5", rs.Rows[1]["size"])
	assert.Equal(t, "", rs.Rows[0]["tx_fees"])
	assert.Equal(t, `{"eth":1}`, rs.Rows[1]["tx_fees"])
	assert.Equal(t, "true", rs.Rows[2]["tx_fees"])
}

func TestExtract_MetadataCount(t *testing.T) {
	t.Run("zero", func(t *testing.T) {
		resp := fetchResponse(t, `{"data": {"query_results": [], "get_result_by_result_id": []}}`)
		_, err := Extract(resp)
		requireSchemaError(t, err)
	})

	t.Run("two", func(t *testing.T) {
		resp := fetchResponse(t, `{"data": {"query_results": [`+metadataJSON+`, {}], "get_result_by_result_id": []}}`)
		_, err := Extract(resp)
		requireSchemaError(t, err)
	})

	t.Run("one_without_rows", func(t *testing.T) {
		resp := fetchResponse(t, `{"data": {"query_results": [`+metadataJSON+`], "get_result_by_result_id": []}}`)
		rs, err := Extract(resp)
		require.NoError(t, err)
		assert.Empty(t, rs.Rows)
	})
}

func TestExtract_MalformedMetadata(t *testing.T) {
	tests := []struct {
		name string
		meta string
	}{
		{"runtime_string", `{"id": "r", "job_id": "j", "error": null, "runtime": "fast", "generated_at": null, "columns": []}`},
		{"columns_not_strings", `{"id": "r", "job_id": "j", "error": null, "runtime": 1, "generated_at": null, "columns": [1]}`},
		{"generated_at_number", `{"id": "r", "job_id": "j", "error": null, "runtime": 1, "generated_at": 5, "columns": []}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			resp := fetchResponse(t, `{"data": {"query_results": [`+tc.meta+`], "get_result_by_result_id": []}}`)
			_, err := Extract(resp)
			require.Error(t, err)
			var parseErr *domain.ParseError
			assert.ErrorAs(t, err, &parseErr)
		})
	}
}

func TestExtract_UnparsableTimestampKeptRaw(t *testing.T) {
	meta := `{"id": "r", "job_id": "j", "error": "division by zero", "runtime": 3, "generated_at": "yesterday", "columns": []}`
	resp := fetchResponse(t, `{"data": {"query_results": [`+meta+`], "get_result_by_result_id": []}}`)
	rs, err := Extract(resp)
	require.NoError(t, err)
	assert.True(t, rs.Meta.GeneratedAt.IsZero())
	assert.Equal(t, "yesterday", rs.Meta.GeneratedAtRaw)
	require.NotNil(t, rs.Meta.Error)
	assert.Equal(t, "division by zero", *rs.Meta.Error)
}

func TestExtract_LaterRowWithoutData(t *testing.T) {
	resp := fetchResponse(t, `{"data": {"query_results": [`+metadataJSON+`], "get_result_by_result_id": [{"data": {}}, {"other": 1}]}}`)
	_, err := Extract(resp)
	requireSchemaError(t, err)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
		ok   bool
	}{
		{"2022-03-10 12:30:30", time.Date(2022, 3, 10, 12, 30, 30, 0, time.UTC), true},
		{"2022-03-19T07:11:37+00:00", time.Date(2022, 3, 19, 7, 11, 37, 0, time.UTC), true},
		{"2022-03-19T09:11:37+02:00", time.Date(2022, 3, 19, 7, 11, 37, 0, time.UTC), true},
		{"not a time", time.Time{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := ParseTimestamp(tc.in)
			assert.Equal(t, tc.ok, ok)
			assert.True(t, tc.want.Equal(got))
		})
	}
}

func TestPoll(t *testing.T) {
	s := request.PollStatus(1).Shape

	pending, err := ValidateDict(http.StatusOK, []byte(`{"data": {"get_result": {"job_id": "j", "result_id": null}}}`), s)
	require.NoError(t, err)
	p, err := Poll(pending)
	require.NoError(t, err)
	assert.True(t, p.Pending())
	assert.Equal(t, "j", p.JobID)

	ready, err := ValidateDict(http.StatusOK, []byte(`{"data": {"get_result": {"job_id": "j", "result_id": "r"}}}`), s)
	require.NoError(t, err)
	p, err = Poll(ready)
	require.NoError(t, err)
	assert.False(t, p.Pending())
	assert.Equal(t, "r", p.ResultID)

	odd, err := ValidateDict(http.StatusOK, []byte(`{"data": {"get_result": {"job_id": "j", "result_id": 7}}}`), s)
	require.NoError(t, err)
	_, err = Poll(odd)
	requireSchemaError(t, err)
}

func TestJobID(t *testing.T) {
	resp, err := ValidateDict(http.StatusOK, []byte(`{"data": {"execute_query": {"job_id": "abc"}}}`), request.ExecuteQuery(1).Shape)
	require.NoError(t, err)
	id, err := JobID(resp)
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	resp, err = ValidateDict(http.StatusOK, []byte(`{"data": {"execute_query": {"job_id": null}}}`), request.ExecuteQuery(1).Shape)
	require.NoError(t, err)
	_, err = JobID(resp)
	requireSchemaError(t, err)
}
