package settings

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mdwconfig "github.com/msto63/guardian/foundation/core/config"
	mdwerror "github.com/msto63/guardian/foundation/core/error"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
)

func TestDefault(t *testing.T) {
	s := Default()

	assert.True(t, s.Guard.Activated)
	assert.True(t, s.Guard.Invariants)
	assert.True(t, s.Guard.Preconditions)
	assert.True(t, s.Guard.Postconditions)
	assert.Equal(t, "formula", s.Validator.DefaultLanguage)
	assert.Equal(t, "en", s.Validator.Locale)
	assert.Equal(t, 512, s.Expression.CacheSize)
	assert.Equal(t, "info", s.Log.Level)
	assert.Equal(t, "text", s.Log.Format)
	assert.Equal(t, "guardian.violations", s.Notify.Subject)
	assert.Equal(t, 5*time.Second, s.Notify.Timeout)
	assert.Equal(t, "guardian", s.Metrics.Namespace)
}

func TestFromConfig_TOML(t *testing.T) {
	cfg, err := mdwconfig.LoadFromString(`
[guard]
activated = true
invariants = false
postconditions = false

[validator]
default_language = "jq"
enabled_profiles = ["strict"]
disabled_profiles = ["legacy"]
locale = "de"
slow_threshold = "250ms"

[expression]
cache_size = 64

[log]
level = "debug"
format = "json"

[notify]
enabled = true
subject = "audit.violations"
timeout = "2s"
`, mdwconfig.FormatTOML)
	require.NoError(t, err)

	s, err := FromConfig(cfg)
	require.NoError(t, err)

	assert.True(t, s.Guard.Activated)
	assert.False(t, s.Guard.Invariants)
	assert.True(t, s.Guard.Preconditions, "unset switches keep their default")
	assert.False(t, s.Guard.Postconditions)
	assert.Equal(t, "jq", s.Validator.DefaultLanguage)
	assert.Equal(t, []string{"strict"}, s.Validator.EnabledProfiles)
	assert.Equal(t, []string{"legacy"}, s.Validator.DisabledProfiles)
	assert.Equal(t, "de", s.Validator.Locale)
	assert.Equal(t, 250*time.Millisecond, s.Validator.SlowThreshold)
	assert.Equal(t, 64, s.Expression.CacheSize)
	assert.Equal(t, "debug", s.Log.Level)
	assert.True(t, s.Notify.Enabled)
	assert.Equal(t, "audit.violations", s.Notify.Subject)
	assert.Equal(t, 2*time.Second, s.Notify.Timeout)
	assert.Equal(t, 3, s.Notify.MaxRetries)
}

func TestFromConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown language", "[validator]\ndefault_language = \"lua\"\n"},
		{"unknown level", "[log]\nlevel = \"loud\"\n"},
		{"switch not bool", "[guard]\nactivated = 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := mdwconfig.LoadFromString(tt.content, mdwconfig.FormatTOML)
			require.NoError(t, err)

			_, err = FromConfig(cfg)
			require.Error(t, err)
			assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration))
		})
	}

	_, err := FromConfig(nil)
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidArgument))
}

func TestFromConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("GUARDIAN_GUARD_ACTIVATED", "false")
	t.Setenv("GUARDIAN_VALIDATOR_ENABLED_PROFILES", "a, b")
	t.Setenv("GUARDIAN_EXPRESSION_CACHE_SIZE", "128")

	s, err := FromConfig(mdwconfig.FromMap(map[string]interface{}{
		"guard": map[string]interface{}{"activated": true},
	}, EnvPrefix))
	require.NoError(t, err)

	assert.False(t, s.Guard.Activated)
	assert.Equal(t, []string{"a", "b"}, s.Validator.EnabledProfiles)
	assert.Equal(t, 128, s.Expression.CacheSize)
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guardian.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
guard:
  preconditions: false
journal:
  enabled: true
  path: /tmp/journal.db
`), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.False(t, s.Guard.Preconditions)
	assert.True(t, s.Journal.Enabled)
	assert.Equal(t, "/tmp/journal.db", s.Journal.Path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeNotFound))
}

func TestLogger(t *testing.T) {
	s := Default()
	s.Log.Level = "warn"
	logger, err := s.Logger()
	require.NoError(t, err)
	assert.Equal(t, mdwlog.LevelWarn, logger.GetLevel())

	s.Log.Format = "xml"
	_, err = s.Logger()
	assert.True(t, mdwerror.HasCode(err, mdwerror.CodeInvalidConfiguration))
}

func TestNewGuard_AppliesSettings(t *testing.T) {
	s := Default()
	s.Log.Level = "off"
	s.Guard.Invariants = false
	s.Guard.Postconditions = false
	s.Validator.DefaultLanguage = "jq"
	s.Validator.Locale = "de"
	s.Validator.DisabledProfiles = []string{"default"}
	s.Validator.EnabledProfiles = []string{"strict"}

	g, err := s.NewGuard()
	require.NoError(t, err)

	assert.True(t, g.IsActivated())
	assert.False(t, g.IsInvariantsEnabled())
	assert.True(t, g.IsPreConditionsEnabled())
	assert.False(t, g.IsPostConditionsEnabled())
	assert.False(t, g.IsProfileEnabled("default"))
	assert.True(t, g.IsProfileEnabled("strict"))
	assert.Equal(t, "jq", g.Expressions().DefaultLanguage())
}
