package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"dune-client/internal/domain"
	"dune-client/internal/request"
)

// Pull reads an existing dashboard and its queries from the service. Queries
// owned by other users are skipped.
func Pull(ctx context.Context, runner Runner, slug string, opts Options) (*Dashboard, error) {
	list, err := runner.Lookup(ctx, request.FindDashboard(opts.SessionUser, slug))
	if err != nil {
		return nil, fmt.Errorf("find dashboard %s: %w", slug, err)
	}
	boards := list[request.KeyDashboards]
	if len(boards) == 0 {
		return nil, domain.ErrNotFound("dashboard %s/%s not found", opts.SessionUser, slug)
	}
	meta, ok := boards[0].(map[string]any)
	if !ok {
		return nil, domain.ErrSchema("dashboard entry is %T, not an object", boards[0])
	}

	name, _ := meta["name"].(string)
	owner := ownerName(meta)
	if owner != opts.SessionUser {
		return nil, domain.ErrValidation("dashboard %s is owned by %q, not %q", slug, owner, opts.SessionUser)
	}

	ids, err := widgetQueryIDs(meta)
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", slug, err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	queries := make([]domain.Query, 0, len(ids))
	for _, id := range ids {
		q, queryOwner, err := findQuery(ctx, runner, id)
		if err != nil {
			return nil, err
		}
		if queryOwner != opts.SessionUser {
			logger.Info("ignoring dashboard query from another user", "query_id", id, "owner", queryOwner)
			continue
		}
		queries = append(queries, q)
	}

	return New(runner, name, slug, owner, queries, opts)
}

func widgetQueryIDs(meta map[string]any) ([]int64, error) {
	widgets, ok := meta["visualization_widgets"].([]any)
	if !ok {
		return nil, domain.ErrSchema("visualization_widgets is not a list")
	}
	seen := make(map[int64]struct{}, len(widgets))
	var ids []int64
	for i, w := range widgets {
		widget, _ := w.(map[string]any)
		vis, _ := widget["visualization"].(map[string]any)
		details, _ := vis["query_details"].(map[string]any)
		id, err := asInt64(details["query_id"])
		if err != nil {
			return nil, domain.ErrSchema("widget %d: query_details.query_id: %v", i, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

func findQuery(ctx context.Context, runner Runner, id int64) (domain.Query, string, error) {
	list, err := runner.Lookup(ctx, request.FindQuery(id))
	if err != nil {
		return domain.Query{}, "", fmt.Errorf("find query %d: %w", id, err)
	}
	found := list[request.KeyQueries]
	if len(found) == 0 {
		return domain.Query{}, "", domain.ErrNotFound("query %d not found", id)
	}
	obj, ok := found[0].(map[string]any)
	if !ok {
		return domain.Query{}, "", domain.ErrSchema("query entry is %T, not an object", found[0])
	}

	datasetID, err := asInt64(obj["dataset_id"])
	if err != nil {
		return domain.Query{}, "", domain.ErrSchema("query %d dataset_id: %v", id, err)
	}
	network, err := domain.NetworkFromID(int(datasetID))
	if err != nil {
		return domain.Query{}, "", fmt.Errorf("query %d: %w", id, err)
	}

	q := domain.Query{ID: id, Network: network}
	q.Name, _ = obj["name"].(string)
	q.Description, _ = obj["description"].(string)
	q.RawSQL, _ = obj["query"].(string)

	rawParams, _ := obj["parameters"].([]any)
	for _, rp := range rawParams {
		pm, ok := rp.(map[string]any)
		if !ok {
			return domain.Query{}, "", domain.ErrParse("query %d: parameter is %T, not an object", id, rp)
		}
		p, err := domain.ParseParameter(pm)
		if err != nil {
			return domain.Query{}, "", fmt.Errorf("query %d: %w", id, err)
		}
		q.Parameters = append(q.Parameters, p)
	}
	return q, ownerName(obj), nil
}

func ownerName(obj map[string]any) string {
	user, _ := obj["user"].(map[string]any)
	name, _ := user["name"].(string)
	return name
}

func asInt64(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Int64()
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	case nil:
		return 0, fmt.Errorf("missing")
	}
	return 0, fmt.Errorf("unexpected type %T", v)
}

// dumpedQuery is the config form written by DumpConfig. Networks are written
// by name so the file stays readable.
type dumpedQuery struct {
	ID          int64                  `json:"id"`
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	QueryFile   string                 `json:"query_file"`
	Network     string                 `json:"network"`
	Parameters  []domain.ParameterWire `json:"parameters"`
}

// ConfigFileName is the name of the config written by DumpConfig.
const ConfigFileName = "_config.json"

// DumpConfig writes the dashboard as a loadable config: _config.json plus one
// .sql file per distinct SQL text. It returns the config path.
func (d *Dashboard) DumpConfig(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", dir, err)
	}

	fileBySQL := make(map[string]string)
	usedFiles := make(map[string]struct{})
	queries := make([]dumpedQuery, 0, len(d.Queries))
	for _, q := range d.Queries {
		file, seen := fileBySQL[q.RawSQL]
		if !seen {
			file = QueryFileName(q.Name)
			if _, taken := usedFiles[file]; taken {
				file = strings.TrimSuffix(file, ".sql") + "-" + q.IDString() + ".sql"
			}
			body := strings.Trim(q.RawSQL, "\n") + "\n"
			if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644); err != nil {
				return "", fmt.Errorf("write %s: %w", file, err)
			}
			fileBySQL[q.RawSQL] = file
			usedFiles[file] = struct{}{}
		}

		params := make([]domain.ParameterWire, 0, len(q.Parameters))
		for _, p := range q.Parameters {
			params = append(params, p.Wire())
		}
		queries = append(queries, dumpedQuery{
			ID:          q.ID,
			Name:        q.Name,
			Description: q.Description,
			QueryFile:   file,
			Network:     q.Network.String(),
			Parameters:  params,
		})
	}

	cfg := struct {
		Meta    Meta          `json:"meta"`
		Queries []dumpedQuery `json:"queries"`
	}{
		Meta:    Meta{Name: d.Name, Slug: d.Slug, User: d.User, QueryPath: "."},
		Queries: queries,
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode config: %w", err)
	}
	path := filepath.Join(dir, ConfigFileName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	d.logger.Info("dashboard config written", "path", path, "queries", len(queries), "sql_files", len(fileBySQL))
	return path, nil
}
