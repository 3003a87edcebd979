package settings

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	mdwconfig "github.com/msto63/guardian/foundation/core/config"
	mdwerror "github.com/msto63/guardian/foundation/core/error"
	"github.com/msto63/guardian/foundation/core/i18n"
	mdwlog "github.com/msto63/guardian/foundation/core/log"
	"github.com/msto63/guardian/pkg/expression"
	"github.com/msto63/guardian/pkg/guard"
	"github.com/msto63/guardian/pkg/metadata"
	"github.com/msto63/guardian/pkg/validator"
)

// EnvPrefix prefixes environment overrides, e.g. GUARDIAN_GUARD_ACTIVATED
const EnvPrefix = "GUARDIAN"

// Settings holds the complete guardian configuration
type Settings struct {
	Guard      GuardSettings
	Validator  ValidatorSettings
	Expression ExpressionSettings
	Log        LogSettings
	Journal    JournalSettings
	Notify     NotifySettings
	Metrics    MetricsSettings
}

// GuardSettings holds the global guard switches
type GuardSettings struct {
	Activated      bool
	Invariants     bool
	Preconditions  bool
	Postconditions bool
}

// ValidatorSettings holds profile selection and message settings
type ValidatorSettings struct {
	DefaultLanguage  string
	EnabledProfiles  []string
	DisabledProfiles []string
	Locale           string
	LocalesDir       string
	SlowThreshold    time.Duration
}

// ExpressionSettings holds expression engine settings
type ExpressionSettings struct {
	CacheSize int
}

// LogSettings holds logger settings
type LogSettings struct {
	Level  string
	Format string
	// Output is not read from configuration; nil means the logger default
	Output io.Writer
}

// JournalSettings holds the violation journal settings
type JournalSettings struct {
	Enabled       bool
	Path          string
	RetentionDays int
}

// NotifySettings holds the violation publisher settings
type NotifySettings struct {
	Enabled    bool
	URL        string
	Subject    string
	MaxRetries int
	Timeout    time.Duration
}

// MetricsSettings holds metrics settings
type MetricsSettings struct {
	Enabled   bool
	Namespace string
}

// Numeric and list keys are left untyped: environment overrides arrive as
// strings and are converted by the getters.
var rules = mdwconfig.ValidationRules{
	"guard.activated":            {Type: "bool"},
	"guard.invariants":           {Type: "bool"},
	"guard.preconditions":        {Type: "bool"},
	"guard.postconditions":       {Type: "bool"},
	"validator.default_language": {Type: "string", OneOf: []string{expression.LanguageFormula, expression.LanguageJQ}},
	"validator.locale":           {Type: "string"},
	"log.level":                  {Type: "string", OneOf: []string{"trace", "debug", "info", "warn", "error", "off"}},
	"log.format":                 {Type: "string", OneOf: []string{"json", "text", "console", "logfmt"}},
	"journal.enabled":            {Type: "bool"},
	"notify.enabled":             {Type: "bool"},
	"metrics.enabled":            {Type: "bool"},
}

// Default returns the settings used when no file is present
func Default() *Settings {
	s := &Settings{
		Guard: GuardSettings{Activated: true, Invariants: true, Preconditions: true, Postconditions: true},
	}
	s.applyDefaults()
	return s
}

// Load loads settings from a TOML or YAML file
func Load(path string) (*Settings, error) {
	path = os.ExpandEnv(path)

	cfg, err := mdwconfig.LoadWithOptions(path, mdwconfig.LoadOptions{
		Format:    mdwconfig.FormatAuto,
		EnvPrefix: EnvPrefix,
	})
	if err != nil {
		return nil, err
	}
	return FromConfig(cfg)
}

// LoadFromEnv loads settings from the file named by GUARDIAN_CONFIG or from
// one of the default locations. Without a file the defaults are used, with
// environment overrides still applied.
func LoadFromEnv() (*Settings, error) {
	path := os.Getenv(EnvPrefix + "_CONFIG")
	if path == "" {
		defaultPaths := []string{
			"./guardian.toml",
			"./guardian.yaml",
			"./configs/guardian.toml",
			filepath.Join(os.Getenv("HOME"), ".config/guardian/guardian.toml"),
		}
		for _, p := range defaultPaths {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
	}

	if path == "" {
		return FromConfig(mdwconfig.FromMap(nil, EnvPrefix))
	}
	return Load(path)
}

// FromConfig reads settings from a configuration tree
func FromConfig(cfg *mdwconfig.Config) (*Settings, error) {
	if cfg == nil {
		return nil, mdwerror.New("configuration is required").
			WithCode(mdwerror.CodeInvalidArgument).
			WithOperation("settings.FromConfig")
	}
	if err := cfg.Validate(rules); err != nil {
		return nil, err
	}

	d := Default()
	s := &Settings{
		Guard: GuardSettings{
			Activated:      cfg.GetBool("guard.activated", d.Guard.Activated),
			Invariants:     cfg.GetBool("guard.invariants", d.Guard.Invariants),
			Preconditions:  cfg.GetBool("guard.preconditions", d.Guard.Preconditions),
			Postconditions: cfg.GetBool("guard.postconditions", d.Guard.Postconditions),
		},
		Validator: ValidatorSettings{
			DefaultLanguage:  cfg.GetString("validator.default_language"),
			EnabledProfiles:  cfg.GetStringSlice("validator.enabled_profiles"),
			DisabledProfiles: cfg.GetStringSlice("validator.disabled_profiles"),
			Locale:           cfg.GetString("validator.locale"),
			LocalesDir:       os.ExpandEnv(cfg.GetString("validator.locales_dir")),
			SlowThreshold:    cfg.GetDuration("validator.slow_threshold"),
		},
		Expression: ExpressionSettings{
			CacheSize: cfg.GetInt("expression.cache_size"),
		},
		Log: LogSettings{
			Level:  cfg.GetString("log.level"),
			Format: cfg.GetString("log.format"),
		},
		Journal: JournalSettings{
			Enabled:       cfg.GetBool("journal.enabled"),
			Path:          os.ExpandEnv(cfg.GetString("journal.path")),
			RetentionDays: cfg.GetInt("journal.retention_days"),
		},
		Notify: NotifySettings{
			Enabled:    cfg.GetBool("notify.enabled"),
			URL:        os.ExpandEnv(cfg.GetString("notify.url")),
			Subject:    cfg.GetString("notify.subject"),
			MaxRetries: cfg.GetInt("notify.max_retries"),
			Timeout:    cfg.GetDuration("notify.timeout"),
		},
		Metrics: MetricsSettings{
			Enabled:   cfg.GetBool("metrics.enabled"),
			Namespace: cfg.GetString("metrics.namespace"),
		},
	}
	s.applyDefaults()
	return s, nil
}

// applyDefaults sets default values for missing configuration
func (s *Settings) applyDefaults() {
	if s.Validator.DefaultLanguage == "" {
		s.Validator.DefaultLanguage = expression.LanguageFormula
	}
	if s.Validator.Locale == "" {
		s.Validator.Locale = i18n.DefaultLocale
	}

	if s.Expression.CacheSize <= 0 {
		s.Expression.CacheSize = 512
	}

	if s.Log.Level == "" {
		s.Log.Level = "info"
	}
	if s.Log.Format == "" {
		s.Log.Format = "text"
	}

	if s.Journal.Path == "" {
		s.Journal.Path = "./data/guardian-journal.db"
	}
	if s.Journal.RetentionDays == 0 {
		s.Journal.RetentionDays = 30
	}

	if s.Notify.URL == "" {
		s.Notify.URL = "nats://127.0.0.1:4222"
	}
	if s.Notify.Subject == "" {
		s.Notify.Subject = "guardian.violations"
	}
	if s.Notify.MaxRetries == 0 {
		s.Notify.MaxRetries = 3
	}
	if s.Notify.Timeout == 0 {
		s.Notify.Timeout = 5 * time.Second
	}

	if s.Metrics.Namespace == "" {
		s.Metrics.Namespace = "guardian"
	}
}

// Logger builds a logger from the log section
func (s *Settings) Logger() (*mdwlog.Logger, error) {
	level, err := mdwlog.ParseLevel(s.Log.Level)
	if err != nil {
		return nil, mdwerror.Wrap(err, "invalid log level").
			WithCode(mdwerror.CodeInvalidConfiguration).
			WithDetail("level", s.Log.Level)
	}
	format, err := mdwlog.ParseFormat(s.Log.Format)
	if err != nil {
		return nil, mdwerror.Wrap(err, "invalid log format").
			WithCode(mdwerror.CodeInvalidConfiguration).
			WithDetail("format", s.Log.Format)
	}
	return mdwlog.NewWithConfig(mdwlog.Config{Level: level, Format: format, Output: s.Log.Output, Name: "guardian"}), nil
}

// Messages builds the message bundle manager for the configured locale
func (s *Settings) Messages() (*i18n.Manager, error) {
	return i18n.New(i18n.Options{
		DefaultLocale: s.Validator.Locale,
		LocalesDir:    s.Validator.LocalesDir,
		Format:        localesFormat(s.Validator.LocalesDir),
	})
}

func localesFormat(dir string) i18n.Format {
	if dir == "" {
		return i18n.FormatTOML
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return i18n.FormatTOML
	}
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			return i18n.FormatYAML
		}
	}
	return i18n.FormatTOML
}

// Expressions builds an expression registry from the expression section
func (s *Settings) Expressions(logger *mdwlog.Logger) *expression.Registry {
	return expression.NewRegistry(expression.Options{
		DefaultLanguage: s.Validator.DefaultLanguage,
		CacheSize:       s.Expression.CacheSize,
		Logger:          logger,
	})
}

// NewGuard builds a guard wired with the configured logger, messages and
// expression registry and applies the switches and profiles. Configurers
// are handed to the metadata index.
func (s *Settings) NewGuard(configurers ...metadata.Configurer) (*guard.Guard, error) {
	logger, err := s.Logger()
	if err != nil {
		return nil, err
	}
	messages, err := s.Messages()
	if err != nil {
		return nil, err
	}

	g := guard.New(guard.Options{Options: validator.Options{
		Index: metadata.New(metadata.Options{
			Configurers: configurers,
			Logger:      logger.WithField("component", "metadata"),
		}),
		Expressions:   s.Expressions(logger),
		Messages:      messages,
		Logger:        logger.WithField("component", "guard"),
		SlowThreshold: s.Validator.SlowThreshold,
	}})
	s.Apply(g)
	return g, nil
}

// Apply sets the guard switches and the profile selection on g
func (s *Settings) Apply(g *guard.Guard) {
	g.SetActivated(s.Guard.Activated)
	g.SetInvariantsEnabled(s.Guard.Invariants)
	g.SetPreConditionsEnabled(s.Guard.Preconditions)
	g.SetPostConditionsEnabled(s.Guard.Postconditions)

	for _, p := range s.Validator.EnabledProfiles {
		g.EnableProfile(p)
	}
	for _, p := range s.Validator.DisabledProfiles {
		g.DisableProfile(p)
	}
}
