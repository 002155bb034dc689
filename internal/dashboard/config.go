package dashboard

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dune-client/internal/domain"
)

// Meta is the dashboard-level section of a config file.
type Meta struct {
	Name string `json:"name" yaml:"name"`
	// Slug is the permanent last segment of the dashboard URL. Dashboards can
	// be renamed; slugs cannot.
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty"`
	User string `json:"user" yaml:"user"`
	// QueryPath is the directory holding the .sql files. Relative paths are
	// resolved against the directory of the config file.
	QueryPath string `json:"query_path" yaml:"query_path"`
}

// QueryConfig describes one dashboard query.
type QueryConfig struct {
	ID          int64                   `json:"id" yaml:"id"`
	Name        string                  `json:"name" yaml:"name"`
	Description string                  `json:"description,omitempty" yaml:"description,omitempty"`
	QueryFile   string                  `json:"query_file" yaml:"query_file"`
	Network     domain.Network          `json:"network" yaml:"network"`
	Requires    string                  `json:"requires,omitempty" yaml:"requires,omitempty"`
	Parameters  []domain.QueryParameter `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Config is the on-disk form of a dashboard.
type Config struct {
	Meta    Meta          `json:"meta" yaml:"meta"`
	Queries []QueryConfig `json:"queries" yaml:"queries"`
}

// ReadConfig decodes a JSON or YAML (by .yaml/.yml extension) config file.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dashboard config: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("decode dashboard config %s: %w", path, err)
	}
	if cfg.Meta.Name == "" {
		return nil, domain.ErrValidation("dashboard config %s: meta.name is required", path)
	}
	if cfg.Meta.User == "" {
		return nil, domain.ErrValidation("dashboard config %s: meta.user is required", path)
	}

	if !filepath.IsAbs(cfg.Meta.QueryPath) {
		cfg.Meta.QueryPath = filepath.Join(filepath.Dir(path), cfg.Meta.QueryPath)
	}
	return &cfg, nil
}

// ReadQueries reads every query's SQL and returns the queries in config order.
// A query with Requires gets the required file's SQL prepended.
func (c *Config) ReadQueries() ([]domain.Query, error) {
	out := make([]domain.Query, 0, len(c.Queries))
	for _, qc := range c.Queries {
		if qc.QueryFile == "" {
			return nil, domain.ErrValidation("query %d (%s) has no query_file", qc.ID, qc.Name)
		}
		sql, err := c.readSQL(qc.QueryFile)
		if err != nil {
			return nil, fmt.Errorf("query %d: %w", qc.ID, err)
		}
		if qc.Requires != "" {
			base, err := c.readSQL(qc.Requires)
			if err != nil {
				return nil, fmt.Errorf("query %d requires: %w", qc.ID, err)
			}
			sql = base + "\n" + sql
		}
		out = append(out, domain.Query{
			ID:          qc.ID,
			Name:        qc.Name,
			Description: qc.Description,
			RawSQL:      sql,
			Network:     qc.Network,
			Parameters:  qc.Parameters,
		})
	}
	return out, nil
}

func (c *Config) readSQL(name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Meta.QueryPath, name)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read sql: %w", err)
	}
	return strings.Trim(string(data), "\n"), nil
}

// DefaultSlug derives a slug from a dashboard name.
func DefaultSlug(name string) string {
	return strings.ReplaceAll(strings.TrimSpace(name), " ", "-")
}

// QueryFileName derives the .sql file name used when dumping a query.
func QueryFileName(queryName string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(queryName)), " ", "-") + ".sql"
}
