package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dune-client/internal/domain"
)

func TestParseParamArg(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    domain.QueryParameter
		wantErr bool
	}{
		{name: "text default", arg: "addr=0xabc", want: domain.NewTextParameter("addr", "0xabc")},
		{name: "text keeps equals", arg: "expr=a=b", want: domain.NewTextParameter("expr", "a=b")},
		{name: "number", arg: "min:number=10.5", want: domain.NewNumberParameter("min", 10.5)},
		{
			name: "date alias",
			arg:  "from:date=2022-03-10 12:30:30",
			want: domain.NewDateParameter("from", time.Date(2022, 3, 10, 12, 30, 30, 0, time.UTC)),
		},
		{name: "missing equals", arg: "addr", wantErr: true},
		{name: "bad number", arg: "n:number=ten", wantErr: true},
		{name: "bad date", arg: "d:datetime=yesterday", wantErr: true},
		{name: "unknown type", arg: "x:bool=true", wantErr: true},
		{name: "empty key", arg: "=v", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseParamArg(tt.arg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s, want %s", got, tt.want)
		})
	}
}

func TestParamsFlag(t *testing.T) {
	var p paramsFlag
	require.NoError(t, p.Set("a=1"))
	require.NoError(t, p.Set("b:number=2"))
	require.Error(t, p.Set("a=3"))

	require.Len(t, p.params, 2)
	assert.Equal(t, "[a:text=1,b:number=2]", p.String())
	assert.Equal(t, "key[:type]=value", p.Type())
}
