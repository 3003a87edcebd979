package records

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/constraint"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format Format
		want   []string
	}{
		{"yaml object", "name: a\nage: 3\n", FormatYAML, []string{"a"}},
		{"yaml list", "- name: a\n- name: b\n", FormatYAML, []string{"a", "b"}},
		{"yaml documents", "name: a\n---\nname: b\n---\n", FormatYAML, []string{"a", "b"}},
		{"json object", `{"name":"a"}`, FormatJSON, []string{"a"}},
		{"json list", `[{"name":"a"},{"name":"b"},{"name":"c"}]`, FormatJSON, []string{"a", "b", "c"}},
		{"empty yaml", "", FormatYAML, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := Parse([]byte(tt.input), tt.format)
			require.NoError(t, err)
			var names []string
			for _, r := range recs {
				v, ok := r.FieldValue("name")
				require.True(t, ok)
				names = append(names, v.(string))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		format Format
	}{
		{"scalar document", "42", FormatYAML},
		{"list of scalars", "[1, 2]", FormatJSON},
		{"broken json", `{"name":`, FormatJSON},
		{"broken yaml", "name: [a", FormatYAML},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.input), tt.format)
			require.Error(t, err)
			assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
		})
	}
}

func TestRecord_FieldAccessor(t *testing.T) {
	assert.True(t, constraint.ImplementsFieldAccessor(Type))

	r := Record{"b": 1, "a": nil}
	v, ok := r.FieldValue("a")
	assert.True(t, ok)
	assert.Nil(t, v)
	_, ok = r.FieldValue("missing")
	assert.False(t, ok)
	assert.Equal(t, []string{"a", "b"}, r.Keys())
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"x"}]`), 0o600))

	recs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, FormatJSON, DetectFormat(path))
	assert.Equal(t, FormatYAML, DetectFormat("people.yml"))

	_, err = LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeNotFound))
}
