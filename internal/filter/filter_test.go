package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const body = `{"items":[{"name":"a","status":"active"},{"name":"b","status":"gone"}],"total":2}`

func TestApply(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"items[0].name", "a"},
		{"total", "2"},
		{"items[?status=='active'].name", "[\n  \"a\"\n]"},
		{"missing", "null"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			out, err := Apply([]byte(body), tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(out))
		})
	}
}

func TestCompileError(t *testing.T) {
	_, err := Compile("items[")
	assert.ErrorContains(t, err, "invalid JMESPath expression")
}

func TestSearchInvalidJSON(t *testing.T) {
	q, err := Compile("a")
	require.NoError(t, err)
	_, err = q.Search([]byte("not json"))
	assert.ErrorContains(t, err, "invalid JSON")
}
