package configurer

import (
	"bytes"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	mdwconfig "github.com/msto63/guardian/foundation/core/config"
	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/pkg/constraint/checks"
)

// RuleSet is the content of a rule file
type RuleSet struct {
	Types []TypeRules `yaml:"types" toml:"types" json:"types"`
}

// TypeRules declares the checks of one registered type
type TypeRules struct {
	Type            string        `yaml:"type" toml:"type" json:"type"`
	Guarded         bool          `yaml:"guarded" toml:"guarded" json:"guarded,omitempty"`
	CheckInvariants *bool         `yaml:"checkInvariants" toml:"checkInvariants" json:"checkInvariants,omitempty"`
	Fields          []MemberRules `yaml:"fields" toml:"fields" json:"fields,omitempty"`
	Invariants      []MemberRules `yaml:"invariants" toml:"invariants" json:"invariants,omitempty"`
	Object          []CheckSpec   `yaml:"object" toml:"object" json:"object,omitempty"`
	Methods         []MethodRules `yaml:"methods" toml:"methods" json:"methods,omitempty"`
}

// MemberRules attaches checks to a field or an invariant getter
type MemberRules struct {
	Name   string      `yaml:"name" toml:"name" json:"name"`
	Checks []CheckSpec `yaml:"checks" toml:"checks" json:"checks"`
}

// MethodRules declares parameter, return value, pre and post checks of a
// method, constructor or static function
type MethodRules struct {
	Name string `yaml:"name" toml:"name" json:"name"`
	// Kind is "method" (default), "constructor" or "static"
	Kind string `yaml:"kind" toml:"kind" json:"kind,omitempty"`
	// Arity is required for unexported methods, constructors and static
	// functions without parameter entries
	Arity          *int             `yaml:"arity" toml:"arity" json:"arity,omitempty"`
	Parameters     []ParameterRules `yaml:"parameters" toml:"parameters" json:"parameters,omitempty"`
	Returns        []CheckSpec      `yaml:"returns" toml:"returns" json:"returns,omitempty"`
	Pre            []ConditionSpec  `yaml:"pre" toml:"pre" json:"pre,omitempty"`
	Post           []ConditionSpec  `yaml:"post" toml:"post" json:"post,omitempty"`
	InvariantsPre  bool             `yaml:"invariantsPre" toml:"invariantsPre" json:"invariantsPre,omitempty"`
	InvariantsPost bool             `yaml:"invariantsPost" toml:"invariantsPost" json:"invariantsPost,omitempty"`
}

// ParameterRules declares the checks of one parameter, in declaration order
type ParameterRules struct {
	Name       string      `yaml:"name" toml:"name" json:"name"`
	Checks     []CheckSpec `yaml:"checks" toml:"checks" json:"checks,omitempty"`
	Exclusions []CheckSpec `yaml:"exclusions" toml:"exclusions" json:"exclusions,omitempty"`
}

// ConditionSpec declares a pre or post condition
type ConditionSpec struct {
	Expr      string   `yaml:"expr" toml:"expr" json:"expr"`
	Lang      string   `yaml:"lang" toml:"lang" json:"lang,omitempty"`
	Old       string   `yaml:"old" toml:"old" json:"old,omitempty"`
	Message   string   `yaml:"message" toml:"message" json:"message,omitempty"`
	ErrorCode string   `yaml:"errorCode" toml:"errorCode" json:"errorCode,omitempty"`
	Severity  int      `yaml:"severity" toml:"severity" json:"severity,omitempty"`
	Profiles  []string `yaml:"profiles" toml:"profiles" json:"profiles,omitempty"`
	When      string   `yaml:"when" toml:"when" json:"when,omitempty"`
}

// CheckSpec names a registered check under "check"; every other key is an
// option of that check
type CheckSpec map[string]interface{}

const checkKey = "check"

// Name returns the check name
func (s CheckSpec) Name() string {
	name, _ := s[checkKey].(string)
	return strings.TrimSpace(name)
}

// Options returns the options without the check name
func (s CheckSpec) Options() checks.Options {
	opts := make(checks.Options, len(s))
	for k, v := range s {
		if k != checkKey {
			opts[k] = v
		}
	}
	return opts
}

// String renders the check as name(key=value, ...) with sorted keys
func (s CheckSpec) String() string {
	keys := make([]string, 0, len(s))
	for k := range s {
		if k != checkKey {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(s.Name())
	if len(keys) == 0 {
		return b.String()
	}
	b.WriteByte('(')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(renderOption(s[k]))
	}
	b.WriteByte(')')
	return b.String()
}

func renderOption(v interface{}) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return "?"
	}
	return strings.TrimSpace(strings.ReplaceAll(string(data), "\n", " "))
}

// ParseRules decodes a rule file. YAML also accepts JSON input.
func ParseRules(content []byte, format mdwconfig.Format) (*RuleSet, error) {
	var rs RuleSet
	switch format {
	case mdwconfig.FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&rs); err != nil && !errors.Is(err, io.EOF) {
			return nil, parseError(err, format)
		}
	default:
		md, err := toml.Decode(string(content), &rs)
		if err != nil {
			return nil, parseError(err, format)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			if unknown := unknownKeys(keys); len(unknown) > 0 {
				return nil, mdwerror.New("unknown keys in rule file").
					WithCode(mdwerror.CodeInvalidConfiguration).
					WithOperation("configurer.ParseRules").
					WithDetail("keys", unknown)
			}
		}
	}
	return &rs, nil
}

// unknownKeys drops the keys below check specs, which are free-form
// options decoded into maps
func unknownKeys(keys []string) []string {
	var out []string
	for _, k := range keys {
		parts := strings.Split(k, ".")
		free := false
		for _, p := range parts {
			switch p {
			case "checks", "object", "returns", "exclusions":
				free = true
			}
		}
		if !free {
			out = append(out, k)
		}
	}
	return out
}

func parseError(err error, format mdwconfig.Format) error {
	return mdwerror.Wrap(err, "failed to parse rule file").
		WithCode(mdwerror.CodeInvalidConfiguration).
		WithOperation("configurer.ParseRules").
		WithDetail("format", format.String())
}
