// Package i18n provides localized message templates for constraint
// violations.
//
// Bundles are TOML (or YAML) documents whose nested tables are flattened to
// dotted keys:
//
//	[guardian.NotNull]
//	violated = "{context} cannot be null"
//
// resolves as "guardian.NotNull.violated". English and German bundles are
// embedded; a directory configured through Options.LocalesDir overrides and
// extends them.
//
//	m, _ := i18n.New(i18n.Options{DefaultLocale: "en"})
//	msg := m.Render("guardian.NotNull.violated", map[string]string{"context": "Person.name"})
package i18n
