package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// FakeQuery is a query stored by FakeDune.
type FakeQuery struct {
	ID          int64
	DatasetID   int
	Name        string
	Description string
	SQL         string
	Owner       string
	Parameters  []map[string]any
}

// FakeDashboard is a dashboard served by FakeDune.
type FakeDashboard struct {
	Name     string
	Slug     string
	Owner    string
	QueryIDs []int64
}

type fakeJob struct {
	queryID  int64
	pending  int
	resultID string
}

// FakeDune is an in-process stand-in for the web front end and GraphQL
// endpoint, covering the login handshake and every operation the client uses.
type FakeDune struct {
	Server *httptest.Server

	Username string
	Password string
	secret   []byte

	mu sync.Mutex
	// PendingPolls is how many GetResult polls report no result per job.
	PendingPolls int
	// Columns and Rows are returned for every result.
	Columns []string
	Rows    []map[string]any
	// TokenTTL is the lifetime of issued tokens (default 1h).
	TokenTTL   time.Duration
	queries    map[int64]*FakeQuery
	dashboards map[string]*FakeDashboard
	jobs       map[string]*fakeJob
	latestJob  map[int64]string
	results    map[string]string
	failures   map[string]int
	ops        []string
	logins     int
}

// NewFakeDune starts a FakeDune accepting the given credentials. The server
// is closed when the test finishes.
func NewFakeDune(t interface{ Cleanup(func()) }, username, password string) *FakeDune {
	f := &FakeDune{
		Username:   username,
		Password:   password,
		secret:     []byte("fake-dune-secret"),
		TokenTTL:   time.Hour,
		queries:    make(map[int64]*FakeQuery),
		dashboards: make(map[string]*FakeDashboard),
		jobs:       make(map[string]*fakeJob),
		latestJob:  make(map[int64]string),
		results:    make(map[string]string),
		failures:   make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/api/auth/csrf", f.handleCSRF)
	r.Post("/api/auth", f.handleLogin)
	r.Post("/api/auth/session", f.handleSession)
	r.Post("/v1/graphql", f.handleGraphQL)

	f.Server = httptest.NewServer(r)
	t.Cleanup(f.Server.Close)
	return f
}

// BaseURL is the URL of the login front end.
func (f *FakeDune) BaseURL() string { return f.Server.URL }

// GraphURL is the URL of the GraphQL endpoint.
func (f *FakeDune) GraphURL() string { return f.Server.URL + "/v1/graphql" }

// SetResult configures the rows returned for every result.
func (f *FakeDune) SetResult(columns []string, rows []map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Columns = columns
	f.Rows = rows
}

// SetPendingPolls configures how many polls report a job as unfinished.
func (f *FakeDune) SetPendingPolls(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PendingPolls = n
}

// FailNext makes the next n calls of operation answer with a GraphQL error.
func (f *FakeDune) FailNext(operation string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[operation] = n
}

// AddQuery stores a query as if it had been saved through the web UI.
func (f *FakeDune) AddQuery(q FakeQuery) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if q.Owner == "" {
		q.Owner = f.Username
	}
	f.queries[q.ID] = &q
}

// AddDashboard stores a dashboard.
func (f *FakeDune) AddDashboard(d FakeDashboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.Owner == "" {
		d.Owner = f.Username
	}
	f.dashboards[d.Owner+"/"+d.Slug] = &d
}

// Query returns the stored query with the given id.
func (f *FakeDune) Query(id int64) (FakeQuery, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queries[id]
	if !ok {
		return FakeQuery{}, false
	}
	return *q, true
}

// Operations returns every GraphQL operation received so far.
func (f *FakeDune) Operations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.ops...)
}

// Logins returns how many successful logins have happened.
func (f *FakeDune) Logins() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.logins
}

// IssueToken signs a token for the configured user, as the session
// endpoint would.
func (f *FakeDune) IssueToken() string {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": f.Username,
		"iat": now.Unix(),
		"exp": now.Add(f.TokenTTL).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (f *FakeDune) handleCSRF(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "csrf", Value: uuid.NewString(), Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (f *FakeDune) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	csrf, err := r.Cookie("csrf")
	if err != nil || csrf.Value != r.PostForm.Get("csrf") {
		http.Error(w, "csrf mismatch", http.StatusForbidden)
		return
	}
	if r.PostForm.Get("action") != "login" ||
		r.PostForm.Get("username") != f.Username ||
		r.PostForm.Get("password") != f.Password {
		// The real front end answers with the login page again.
		w.WriteHeader(http.StatusOK)
		return
	}
	f.mu.Lock()
	f.logins++
	f.mu.Unlock()
	http.SetCookie(w, &http.Cookie{Name: "auth-refresh", Value: uuid.NewString(), Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (f *FakeDune) handleSession(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie("auth-refresh"); err != nil {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]string{"token": f.IssueToken()})
}

func (f *FakeDune) validToken(r *http.Request) bool {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	token, err := jwt.Parse(raw, func(*jwt.Token) (any, error) { return f.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil && token.Valid
}

type graphQLBody struct {
	OperationName string         `json:"operationName"`
	Variables     map[string]any `json:"variables"`
	Query         string         `json:"query"`
}

func (f *FakeDune) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var body graphQLBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad request body", http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, body.OperationName)

	if !f.validToken(r) {
		writeRaw(w, ErrorsBody("Could not verify JWT: JWTExpired"))
		return
	}
	if n := f.failures[body.OperationName]; n > 0 {
		f.failures[body.OperationName] = n - 1
		writeRaw(w, ErrorsBody("internal service error"))
		return
	}

	switch body.OperationName {
	case "UpsertQuery":
		f.upsert(w, body.Variables)
	case "ExecuteQuery":
		f.execute(w, body.Variables)
	case "GetResult":
		f.getResult(w, body.Variables)
	case "FindResultDataByResult":
		f.findResult(w, body.Variables)
	case "FindQuery":
		f.findQuery(w, body.Variables)
	case "FindDashboard":
		f.findDashboard(w, body.Variables)
	default:
		writeRaw(w, ErrorsBody("unknown operation "+body.OperationName))
	}
}

func (f *FakeDune) upsert(w http.ResponseWriter, vars map[string]any) {
	obj, _ := vars["object"].(map[string]any)
	id := toInt64(obj["id"])
	q := &FakeQuery{
		ID:          id,
		DatasetID:   int(toInt64(obj["dataset_id"])),
		Name:        fmt.Sprint(obj["name"]),
		Description: fmt.Sprint(obj["description"]),
		SQL:         fmt.Sprint(obj["query"]),
		Owner:       f.Username,
	}
	if params, ok := obj["parameters"].([]any); ok {
		for _, p := range params {
			if m, ok := p.(map[string]any); ok {
				q.Parameters = append(q.Parameters, m)
			}
		}
	}
	f.queries[id] = q
	writeRaw(w, UpsertBody(id, q.DatasetID, q.Name, q.SQL))
}

func (f *FakeDune) execute(w http.ResponseWriter, vars map[string]any) {
	queryID := toInt64(vars["query_id"])
	if _, ok := f.queries[queryID]; !ok {
		writeRaw(w, ErrorsBody(fmt.Sprintf("query %d not found", queryID)))
		return
	}
	jobID := uuid.NewString()
	f.jobs[jobID] = &fakeJob{queryID: queryID, pending: f.PendingPolls}
	f.latestJob[queryID] = jobID
	writeRaw(w, ExecuteBody(jobID))
}

func (f *FakeDune) getResult(w http.ResponseWriter, vars map[string]any) {
	queryID := toInt64(vars["query_id"])
	jobID, ok := f.latestJob[queryID]
	if !ok {
		writeRaw(w, ErrorsBody(fmt.Sprintf("no job for query %d", queryID)))
		return
	}
	job := f.jobs[jobID]
	if job.pending > 0 {
		job.pending--
		writeRaw(w, PendingBody(jobID))
		return
	}
	if job.resultID == "" {
		job.resultID = uuid.NewString()
		f.results[job.resultID] = jobID
	}
	writeRaw(w, ReadyBody(jobID, job.resultID))
}

func (f *FakeDune) findResult(w http.ResponseWriter, vars map[string]any) {
	resultID := fmt.Sprint(vars["result_id"])
	jobID, ok := f.results[resultID]
	if !ok {
		writeRaw(w, ErrorsBody("result not found"))
		return
	}
	writeRaw(w, ResultsBody(resultID, jobID, f.Columns, f.Rows))
}

func (f *FakeDune) queryEcho(q *FakeQuery) map[string]any {
	params := make([]any, 0, len(q.Parameters))
	for _, p := range q.Parameters {
		params = append(params, p)
	}
	return map[string]any{
		"id":                       q.ID,
		"dataset_id":               q.DatasetID,
		"name":                     q.Name,
		"description":              q.Description,
		"query":                    q.SQL,
		"private_to_group_id":      nil,
		"is_temp":                  false,
		"is_archived":              false,
		"created_at":               "2022-03-19T07:11:37.344998+00:00",
		"updated_at":               "2022-03-19T07:11:37.344998+00:00",
		"schedule":                 nil,
		"tags":                     []string{},
		"parameters":               params,
		"visualizations":           []any{},
		"forked_query":             nil,
		"user":                     map[string]any{"id": 1, "name": q.Owner, "profile_image_url": nil},
		"query_favorite_count_all": map[string]any{"favorite_count": 0},
		"favorite_queries":         []any{},
	}
}

func (f *FakeDune) findQuery(w http.ResponseWriter, vars map[string]any) {
	id := toInt64(vars["id"])
	out := []any{}
	if q, ok := f.queries[id]; ok {
		out = append(out, f.queryEcho(q))
	}
	writeJSON(w, map[string]any{"data": map[string]any{"queries": out}})
}

func (f *FakeDune) findDashboard(w http.ResponseWriter, vars map[string]any) {
	key := fmt.Sprint(vars["user"]) + "/" + fmt.Sprint(vars["slug"])
	out := []any{}
	if d, ok := f.dashboards[key]; ok {
		widgets := make([]any, 0, len(d.QueryIDs))
		for i, id := range d.QueryIDs {
			widgets = append(widgets, map[string]any{
				"id":         i + 1,
				"created_at": "2022-03-19T07:11:37+00:00",
				"updated_at": "2022-03-19T07:11:37+00:00",
				"options":    map[string]any{},
				"visualization": map[string]any{
					"id":         i + 100,
					"type":       "table",
					"name":       "Query results",
					"options":    map[string]any{},
					"created_at": "2022-03-19T07:11:37+00:00",
					"query_details": map[string]any{
						"query_id": id,
						"name":     "",
					},
				},
			})
		}
		out = append(out, map[string]any{
			"id":                           1,
			"name":                         d.Name,
			"slug":                         d.Slug,
			"private_to_group_id":          nil,
			"is_archived":                  false,
			"created_at":                   "2022-03-19T07:11:37+00:00",
			"updated_at":                   "2022-03-19T07:11:37+00:00",
			"tags":                         []string{},
			"user":                         map[string]any{"id": 1, "name": d.Owner, "profile_image_url": nil},
			"text_widgets":                 []any{},
			"visualization_widgets":        widgets,
			"param_widgets":                []any{},
			"dashboard_favorite_count_all": map[string]any{"favorite_count": 0},
			"trending_scores":              nil,
			"favorite_dashboards":          []any{},
		})
	}
	writeJSON(w, map[string]any{"data": map[string]any{"dashboards": out}})
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case float64:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	}
	return 0
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
