package testutil

import (
	"encoding/json"
	"fmt"
)

// UpsertBody returns a successful UpsertQuery response echoing the query.
func UpsertBody(queryID int64, datasetID int, name, sql string) string {
	echo := map[string]any{
		"id":                       queryID,
		"dataset_id":               datasetID,
		"name":                     name,
		"description":              "",
		"query":                    sql,
		"private_to_group_id":      nil,
		"is_temp":                  false,
		"is_archived":              false,
		"created_at":               "2022-03-19T07:11:37.344998+00:00",
		"updated_at":               "2022-03-19T07:11:37.344998+00:00",
		"schedule":                 nil,
		"tags":                     []string{},
		"parameters":               []any{},
		"visualizations":           []any{},
		"forked_query":             nil,
		"user":                     map[string]any{"id": 84, "name": "tester", "profile_image_url": nil},
		"query_favorite_count_all": map[string]any{"favorite_count": 0},
		"favorite_queries":         []any{},
	}
	return mustJSON(map[string]any{"data": map[string]any{"insert_queries_one": echo}})
}

// ExecuteBody returns a successful ExecuteQuery response.
func ExecuteBody(jobID string) string {
	return fmt.Sprintf(`{"data": {"execute_query": {"job_id": %q}}}`, jobID)
}

// PendingBody returns a GetResult response for a job without a result yet.
func PendingBody(jobID string) string {
	return fmt.Sprintf(`{"data": {"get_result": {"job_id": %q, "result_id": null}}}`, jobID)
}

// ReadyBody returns a GetResult response pointing at resultID.
func ReadyBody(jobID, resultID string) string {
	return fmt.Sprintf(`{"data": {"get_result": {"job_id": %q, "result_id": %q}}}`, jobID, resultID)
}

// ResultsBody returns a FindResultDataByResult response with the given rows.
func ResultsBody(resultID, jobID string, columns []string, rows []map[string]any) string {
	data := make([]any, 0, len(rows))
	for _, r := range rows {
		data = append(data, map[string]any{"data": r})
	}
	return mustJSON(map[string]any{"data": map[string]any{
		"query_results": []any{map[string]any{
			"id":           resultID,
			"job_id":       jobID,
			"error":        nil,
			"runtime":      42,
			"generated_at": "2022-03-19T07:11:37.344998+00:00",
			"columns":      columns,
		}},
		"get_result_by_result_id": data,
	}})
}

// ErrorsBody returns a response carrying a GraphQL errors array.
func ErrorsBody(message string) string {
	return fmt.Sprintf(`{"errors": [{"message": %q, "extensions": {"code": "invalid-jwt"}}]}`, message)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
