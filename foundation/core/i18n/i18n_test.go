package i18n

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEmbeddedBundles(t *testing.T) {
	m, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	got := m.Render("guardian.NotNull.violated", map[string]string{"context": "Person.name"})
	if got != "Person.name cannot be null" {
		t.Errorf("Render() = %q", got)
	}

	locales := m.AvailableLocales()
	if len(locales) != 2 || locales[0] != "de" || locales[1] != "en" {
		t.Errorf("AvailableLocales() = %v", locales)
	}
}

func TestSetLocaleAndFallback(t *testing.T) {
	m, err := New(Options{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := m.SetLocale("de"); err != nil {
		t.Fatalf("SetLocale() error = %v", err)
	}
	msg, ok := m.Message("guardian.NotNull.violated")
	if !ok || msg != "{context} darf nicht null sein" {
		t.Errorf("Message() = %q, %v", msg, ok)
	}

	if err := m.LoadBundle("en", []byte(`only.english = "x"`), FormatTOML); err != nil {
		t.Fatalf("LoadBundle() error = %v", err)
	}
	if msg, ok := m.Message("only.english"); !ok || msg != "x" {
		t.Errorf("fallback Message() = %q, %v", msg, ok)
	}

	if err := m.SetLocale("fr"); err == nil {
		t.Error("SetLocale(fr) expected error")
	}
}

func TestRegionalFallback(t *testing.T) {
	m, _ := New(Options{})
	msg, ok := m.MessageFor("de_AT", "guardian.NotBlank.violated")
	if !ok || msg != "{context} darf nicht leer sein" {
		t.Errorf("MessageFor(de_AT) = %q, %v", msg, ok)
	}
}

func TestRenderUnknownKey(t *testing.T) {
	m, _ := New(Options{SkipEmbedded: true})
	got := m.Render("{context} is odd", map[string]string{"context": "x"})
	if got != "x is odd" {
		t.Errorf("Render() = %q", got)
	}
}

func TestLocalesDir(t *testing.T) {
	dir := t.TempDir()
	content := "guardian:\n  NotNull:\n    violated: \"{context} is required\"\n"
	if err := os.WriteFile(filepath.Join(dir, "en.yaml"), []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	m, err := New(Options{LocalesDir: dir, Format: FormatYAML})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	got := m.Render("guardian.NotNull.violated", map[string]string{"context": "id"})
	if got != "id is required" {
		t.Errorf("Render() = %q", got)
	}
	if !m.HasMessage("guardian.Min.violated") {
		t.Error("embedded messages should remain available")
	}
}

func TestDetectLocale(t *testing.T) {
	available := []string{"en", "de"}
	tests := []struct {
		header string
		want   string
	}{
		{"de-DE,de;q=0.9,en;q=0.8", "de"},
		{"fr-FR,en;q=0.5", "en"},
		{"fr", "en"},
		{"", "en"},
		{"en;q=0.2,de;q=0.7", "de"},
	}
	for _, tt := range tests {
		if got := DetectLocale(tt.header, available, "en"); got != tt.want {
			t.Errorf("DetectLocale(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}

func TestNormalizeLocale(t *testing.T) {
	tests := map[string]string{
		"de_DE": "de-DE",
		"EN-us": "en-US",
		"":      "",
		"fr":    "fr",
	}
	for in, want := range tests {
		if got := NormalizeLocale(in); got != want {
			t.Errorf("NormalizeLocale(%q) = %q, want %q", in, got, want)
		}
	}
}
