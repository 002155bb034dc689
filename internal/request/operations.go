package request

import (
	"dune-client/internal/domain"
)

// registerUserID is the owner id the upsert mutation requires. The service
// ignores it in favour of the authenticated user.
const registerUserID = 84

var queryEchoFields = []string{
	"id",
	"dataset_id",
	"name",
	"description",
	"query",
	"private_to_group_id",
	"is_temp",
	"is_archived",
	"created_at",
	"updated_at",
	"schedule",
	"tags",
	"parameters",
	"visualizations",
	"forked_query",
	"user",
	"query_favorite_count_all",
	"favorite_queries",
}

var dashboardFields = []string{
	"id",
	"name",
	"slug",
	"private_to_group_id",
	"is_archived",
	"created_at",
	"updated_at",
	"tags",
	"user",
	"text_widgets",
	"visualization_widgets",
	"param_widgets",
	"dashboard_favorite_count_all",
	"trending_scores",
	"favorite_dashboards",
}

// Response keys read by callers.
const (
	KeyInsertQueriesOne    = "insert_queries_one"
	KeyExecuteQuery        = "execute_query"
	KeyGetResult           = "get_result"
	KeyQueryResults        = "query_results"
	KeyGetResultByResultID = "get_result_by_result_id"
	KeyQueries             = "queries"
	KeyDashboards          = "dashboards"
	FieldJobID             = "job_id"
	FieldResultID          = "result_id"
	FieldData              = "data"
)

func serializeParameters(params []domain.QueryParameter) []domain.ParameterWire {
	out := make([]domain.ParameterWire, 0, len(params))
	for _, p := range params {
		out = append(out, p.Wire())
	}
	return out
}

// RegisterQuery builds the upsert that stores the query text, network and
// parameters under the query's id.
func RegisterQuery(q domain.Query) Descriptor {
	object := map[string]any{
		"id":          q.ID,
		"schedule":    nil,
		"dataset_id":  q.Network.ID(),
		"name":        q.Name,
		"query":       q.RawSQL,
		"user_id":     registerUserID,
		"description": q.Description,
		"is_archived": false,
		"is_temp":     false,
		"tags":        []string{},
		"parameters":  serializeParameters(q.Parameters),
		"visualizations": map[string]any{
			"data": []any{},
			"on_conflict": map[string]any{
				"constraint":     "visualizations_pkey",
				"update_columns": []string{"name", "options"},
			},
		},
	}
	return Descriptor{
		Payload: GraphQLRequest{
			OperationName: OperationUpsertQuery,
			Variables: map[string]any{
				"object": object,
				"on_conflict": map[string]any{
					"constraint": "queries_pkey",
					"update_columns": []string{
						"dataset_id",
						"name",
						"description",
						"query",
						"schedule",
						"is_archived",
						"is_temp",
						"tags",
						"parameters",
					},
				},
				"session_id": 0,
			},
			Query: upsertQueryDocument,
		},
		Shape:  KeyMap{KeyInsertQueriesOne: NewKeySet(queryEchoFields...)},
		Regime: RegimeDict,
	}
}

// ExecuteQuery builds the mutation that starts a job for a registered query.
func ExecuteQuery(queryID int64) Descriptor {
	return Descriptor{
		Payload: GraphQLRequest{
			OperationName: OperationExecuteQuery,
			Variables: map[string]any{
				"query_id":   queryID,
				"parameters": []any{},
			},
			Query: executeQueryDocument,
		},
		Shape:  KeyMap{KeyExecuteQuery: NewKeySet(FieldJobID)},
		Regime: RegimeDict,
	}
}

// PollStatus builds the status query for the latest job of a query.
// A null result_id in the response means the job has not finished.
func PollStatus(queryID int64) Descriptor {
	return Descriptor{
		Payload: GraphQLRequest{
			OperationName: OperationGetResult,
			Variables:     map[string]any{"query_id": queryID},
			Query:         getResultDocument,
		},
		Shape:  KeyMap{KeyGetResult: NewKeySet(FieldJobID, FieldResultID)},
		Regime: RegimeDict,
	}
}

// FetchResults builds the query returning run metadata and rows of a result.
func FetchResults(resultID string) Descriptor {
	return Descriptor{
		Payload: GraphQLRequest{
			OperationName: OperationFindResultDataByResult,
			Variables:     map[string]any{"result_id": resultID},
			Query:         findResultDataByResultDocument,
		},
		Shape: KeyMap{
			KeyQueryResults:        NewKeySet("id", "job_id", "error", "runtime", "generated_at", "columns"),
			KeyGetResultByResultID: NewKeySet(FieldData),
		},
		Regime: RegimeList,
	}
}

// FindDashboard builds the lookup of a dashboard by owner and slug.
func FindDashboard(user, slug string) Descriptor {
	return Descriptor{
		Payload: GraphQLRequest{
			OperationName: OperationFindDashboard,
			Variables: map[string]any{
				"session_id": 0,
				"user":       user,
				"slug":       slug,
			},
			Query: findDashboardDocument,
		},
		Shape:  KeyMap{KeyDashboards: NewKeySet(dashboardFields...)},
		Regime: RegimeList,
	}
}

// FindQuery builds the lookup of a stored query by id.
func FindQuery(queryID int64) Descriptor {
	return Descriptor{
		Payload: GraphQLRequest{
			OperationName: OperationFindQuery,
			Variables: map[string]any{
				"session_id": 0,
				"id":         queryID,
			},
			Query: findQueryDocument,
		},
		Shape:  KeyMap{KeyQueries: NewKeySet(queryEchoFields...)},
		Regime: RegimeList,
	}
}
