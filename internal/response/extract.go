package response

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"dune-client/internal/domain"
	"dune-client/internal/request"
)

// timestampLayouts are tried in order when parsing metadata timestamps.
var timestampLayouts = []string{
	domain.ParameterDateLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
}

// PollResult is the outcome of one status poll.
type PollResult struct {
	JobID    string
	ResultID string
}

// Pending reports whether the job has not produced a result yet.
func (p PollResult) Pending() bool { return p.ResultID == "" }

// JobID reads the job id from a validated ExecuteQuery response.
func JobID(resp DictResponse) (string, error) {
	obj, ok := resp.Object(request.KeyExecuteQuery)
	if !ok {
		return "", domain.ErrSchema("%q: missing or not an object", request.KeyExecuteQuery)
	}
	id, err := requiredString(obj, request.FieldJobID)
	if err != nil {
		return "", err
	}
	return id, nil
}

// Poll reads a validated GetResult response. A null result_id is not an
// error; it yields a pending PollResult.
func Poll(resp DictResponse) (PollResult, error) {
	obj, ok := resp.Object(request.KeyGetResult)
	if !ok {
		return PollResult{}, domain.ErrSchema("%q: missing or not an object", request.KeyGetResult)
	}
	var out PollResult
	if v, ok := obj[request.FieldJobID].(string); ok {
		out.JobID = v
	}
	switch v := obj[request.FieldResultID].(type) {
	case nil:
	case string:
		out.ResultID = v
	default:
		return PollResult{}, domain.ErrSchema("%s: expected string or null, got %s", request.FieldResultID, typeName(v))
	}
	return out, nil
}

// Extract converts a validated FindResultDataByResult response into a
// ResultSet. Rows keep the order the service returned them in.
func Extract(resp ListResponse) (*domain.ResultSet, error) {
	metaList, ok := resp[request.KeyQueryResults]
	if !ok {
		return nil, domain.ErrSchema("missing %q", request.KeyQueryResults)
	}
	if len(metaList) != 1 {
		return nil, domain.ErrSchema("expected exactly one %q element, got %d", request.KeyQueryResults, len(metaList))
	}
	metaObj, ok := metaList[0].(map[string]any)
	if !ok {
		return nil, domain.ErrSchema("%q[0]: expected object, got %s", request.KeyQueryResults, typeName(metaList[0]))
	}
	meta, err := parseMetadata(metaObj)
	if err != nil {
		return nil, err
	}

	rawRows, ok := resp[request.KeyGetResultByResultID]
	if !ok {
		return nil, domain.ErrSchema("missing %q", request.KeyGetResultByResultID)
	}
	rows := make([]domain.Record, 0, len(rawRows))
	for i, raw := range rawRows {
		elem, ok := raw.(map[string]any)
		if !ok {
			return nil, domain.ErrSchema("row %d: expected object, got %s", i, typeName(raw))
		}
		data, ok := elem[request.FieldData].(map[string]any)
		if !ok {
			return nil, domain.ErrSchema("row %d: %q must be an object", i, request.FieldData)
		}
		rec := make(domain.Record, len(data))
		for k, v := range data {
			rec[k] = cellString(v)
		}
		rows = append(rows, rec)
	}

	return &domain.ResultSet{Meta: meta, Rows: rows}, nil
}

func parseMetadata(obj map[string]any) (domain.RunMetadata, error) {
	var meta domain.RunMetadata
	var err error

	if meta.ID, err = requiredString(obj, "id"); err != nil {
		return meta, err
	}
	if v, ok := obj["job_id"].(string); ok {
		meta.JobID = v
	}

	switch v := obj["error"].(type) {
	case nil:
	case string:
		meta.Error = &v
	default:
		b, _ := json.Marshal(v)
		s := string(b)
		meta.Error = &s
	}

	switch v := obj["runtime"].(type) {
	case nil:
	case json.Number:
		meta.RuntimeMs, err = numberToInt(v)
		if err != nil {
			return meta, domain.ErrParse("runtime: %v", err)
		}
	default:
		return meta, domain.ErrParse("runtime: expected number, got %s", typeName(v))
	}

	switch v := obj["generated_at"].(type) {
	case nil:
	case string:
		meta.GeneratedAtRaw = v
		if ts, ok := ParseTimestamp(v); ok {
			meta.GeneratedAt = ts
		}
	default:
		return meta, domain.ErrParse("generated_at: expected string, got %s", typeName(v))
	}

	switch v := obj["columns"].(type) {
	case nil:
	case []any:
		meta.Columns = make([]string, 0, len(v))
		for i, c := range v {
			s, ok := c.(string)
			if !ok {
				return meta, domain.ErrParse("columns[%d]: expected string, got %s", i, typeName(c))
			}
			meta.Columns = append(meta.Columns, s)
		}
	default:
		return meta, domain.ErrParse("columns: expected list, got %s", typeName(v))
	}

	return meta, nil
}

// ParseTimestamp parses the timestamp formats the service emits. It reports
// false instead of failing when s matches none of them.
func ParseTimestamp(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func requiredString(obj map[string]any, key string) (string, error) {
	v, ok := obj[key].(string)
	if !ok || v == "" {
		return "", domain.ErrSchema("%s: expected non-empty string, got %s", key, typeName(obj[key]))
	}
	return v, nil
}

func numberToInt(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	return int64(f), nil
}

// cellString renders a decoded JSON value as a record cell.
func cellString(v any) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case json.Number:
		return c.String()
	case bool:
		return strconv.FormatBool(c)
	default:
		var sb strings.Builder
		enc := json.NewEncoder(&sb)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(c); err != nil {
			return ""
		}
		return strings.TrimSuffix(sb.String(), "\n")
	}
}
