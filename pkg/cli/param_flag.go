package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"dune-client/internal/domain"
)

// paramsFlag collects repeated --param key[:type]=value arguments.
type paramsFlag struct {
	params []domain.QueryParameter
}

var _ pflag.Value = (*paramsFlag)(nil)

func (p *paramsFlag) String() string {
	parts := make([]string, 0, len(p.params))
	for _, q := range p.params {
		parts = append(parts, fmt.Sprintf("%s:%s=%s", q.Key, q.Type, q.ValueString()))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func (p *paramsFlag) Set(s string) error {
	param, err := parseParamArg(s)
	if err != nil {
		return err
	}
	for _, existing := range p.params {
		if existing.Key == param.Key {
			return fmt.Errorf("parameter %q given twice", param.Key)
		}
	}
	p.params = append(p.params, param)
	return nil
}

func (p *paramsFlag) Type() string { return "key[:type]=value" }

// parseParamArg parses "key=value" (text), "key:number=10" or
// "key:datetime=2022-03-10 12:30:30".
func parseParamArg(s string) (domain.QueryParameter, error) {
	lhs, value, ok := strings.Cut(s, "=")
	if !ok {
		return domain.QueryParameter{}, fmt.Errorf("parameter %q: expected key[:type]=value", s)
	}
	key, typ, hasType := strings.Cut(strings.TrimSpace(lhs), ":")
	if !hasType {
		typ = string(domain.ParameterTypeText)
	}
	if typ == "date" {
		typ = string(domain.ParameterTypeDate)
	}
	return domain.ParseParameter(map[string]any{"key": key, "type": typ, "value": value})
}
