// Package records decodes YAML and JSON documents into dynamic records that
// the validator reads through constraint.FieldAccessor.
package records

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	mdwerror "github.com/msto63/guardian/foundation/core/error"
)

// Record is one decoded document. Nested objects stay plain maps and are
// reached through Assert expressions or element targets.
type Record map[string]interface{}

// Type is the reflect type of Record
var Type = reflect.TypeOf(Record{})

// FieldValue implements constraint.FieldAccessor
func (r Record) FieldValue(name string) (interface{}, bool) {
	v, ok := r[name]
	return v, ok
}

// Keys returns the field names in sorted order
func (r Record) Keys() []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Format of a record document
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
)

// DetectFormat picks the format from the file extension. Unknown
// extensions are read as YAML, which also accepts JSON.
func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return FormatJSON
	}
	return FormatYAML
}

// LoadFile reads the records of a file
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		code := mdwerror.CodeConfigError
		if errors.Is(err, os.ErrNotExist) {
			code = mdwerror.CodeNotFound
		}
		return nil, mdwerror.Wrap(err, "failed to read records").
			WithCode(code).
			WithOperation("records.LoadFile").
			WithDetail("path", path)
	}
	return Parse(data, DetectFormat(path))
}

// Parse decodes records. A document holding a list yields one record per
// element; YAML input may hold several documents.
func Parse(data []byte, format Format) ([]Record, error) {
	var docs []interface{}
	switch format {
	case FormatJSON:
		var doc interface{}
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, parseError(err, "json")
		}
		docs = append(docs, doc)
	default:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		for {
			var doc interface{}
			err := dec.Decode(&doc)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return nil, parseError(err, "yaml")
			}
			if doc != nil {
				docs = append(docs, doc)
			}
		}
	}

	var out []Record
	for _, doc := range docs {
		switch d := doc.(type) {
		case []interface{}:
			for i, item := range d {
				r, ok := toRecord(item)
				if !ok {
					return nil, mdwerror.New("list element is not an object").
						WithCode(mdwerror.CodeInvalidArgument).
						WithOperation("records.Parse").
						WithDetail("index", i)
				}
				out = append(out, r)
			}
		default:
			r, ok := toRecord(d)
			if !ok {
				return nil, mdwerror.New("document is not an object or a list of objects").
					WithCode(mdwerror.CodeInvalidArgument).
					WithOperation("records.Parse")
			}
			out = append(out, r)
		}
	}
	return out, nil
}

func parseError(err error, format string) error {
	return mdwerror.Wrap(err, "failed to parse records").
		WithCode(mdwerror.CodeInvalidArgument).
		WithOperation("records.Parse").
		WithDetail("format", format)
}

func toRecord(v interface{}) (Record, bool) {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, false
	}
	return Record(m), true
}
