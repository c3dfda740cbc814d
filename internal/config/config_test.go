package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	jserrors "github.com/FocuswithJustin/JuniperScript/core/errors"
	"github.com/FocuswithJustin/JuniperScript/core/quote"
)

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "juniper-script.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.ConfigVersion != CurrentVersion {
		t.Errorf("ConfigVersion = %d", cfg.ConfigVersion)
	}
	if len(cfg.Quotes.Levels) != 3 || cfg.Quotes.Levels[0].Open != "«" {
		t.Errorf("Quotes = %+v, want the default system", cfg.Quotes)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoadMissingFile(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default", cfg.Logging.Level)
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, `config_version: 1
quotes:
  levels:
    - {level: 1, open: "“", close: "”"}
    - {level: 2, open: "‘", close: "’"}
  dialogue_opener: "—"
  dialogue_end: sentence
control_data: data/cv.tsv
reference:
  language: fr
  he_said: "dit-il."
  dir: ref/fr
  secondary:
    language: en
    dir: /abs/en
logging:
  level: DEBUG
  format: json
  file: logs/js.log
  max_backups: 7
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(cfg.Quotes.Levels) != 2 || cfg.Quotes.Levels[1].Open != "‘" {
		t.Errorf("Quotes.Levels = %+v", cfg.Quotes.Levels)
	}
	if cfg.Quotes.DialogueEnd != quote.EndsAtSentence || cfg.Quotes.DialogueOpener != "—" {
		t.Errorf("dialogue = %q %v", cfg.Quotes.DialogueOpener, cfg.Quotes.DialogueEnd)
	}
	if want := filepath.Join(dir, "data", "cv.tsv"); cfg.ControlData != want {
		t.Errorf("ControlData = %q, want %q", cfg.ControlData, want)
	}
	if cfg.Reference == nil || cfg.Reference.Dir != filepath.Join(dir, "ref", "fr") {
		t.Fatalf("Reference = %+v", cfg.Reference)
	}
	if cfg.Reference.Secondary == nil || cfg.Reference.Secondary.Dir != "/abs/en" {
		t.Errorf("Secondary = %+v", cfg.Reference.Secondary)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" || cfg.Logging.MaxBackups != 7 {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Logging.MaxSizeMB != 10 {
		t.Errorf("Logging.MaxSizeMB = %d, want default 10", cfg.Logging.MaxSizeMB)
	}

	rt := cfg.Reference.NewReferenceText()
	if rt.Layers() != 2 || rt.HeSaid(0) != "dit-il." || rt.Layer(1).Language != "en" {
		t.Errorf("NewReferenceText() = %d layers, he said %q", rt.Layers(), rt.HeSaid(0))
	}
}

func TestEnvOverrides(t *testing.T) {
	path := writeFile(t, t.TempDir(), "logging:\n  level: warn\n")
	t.Setenv(EnvLogLevel, "ERROR")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvLogFile, "/tmp/js.log")
	t.Setenv(EnvControlData, "/data/cv.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Logging.Level != "error" || cfg.Logging.Format != "json" || cfg.Logging.File != "/tmp/js.log" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.ControlData != "/data/cv.db" {
		t.Errorf("ControlData = %q", cfg.ControlData)
	}
	if name, ok := EnvOverrideFor("logging.level"); !ok || name != EnvLogLevel {
		t.Errorf("EnvOverrideFor(logging.level) = %q, %v", name, ok)
	}
	if _, ok := EnvOverrideFor("quotes"); ok {
		t.Error("EnvOverrideFor(quotes) = true")
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		target  error
	}{
		{"bad yaml", "quotes: [", jserrors.ErrInvalidInput},
		{"bad dialogue end", "quotes:\n  dialogue_end: sometimes\n  dialogue_opener: \"—\"\n", jserrors.ErrInvalidInput},
		{"levels out of order", "quotes:\n  levels:\n    - {level: 2, open: a, close: b}\n    - {level: 1, open: c, close: d}\n", jserrors.ErrInvalidInput},
		{"future version", "config_version: 99\n", jserrors.ErrUnsupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, t.TempDir(), tt.content))
			if !errors.Is(err, tt.target) {
				t.Errorf("Load() error = %v, want %v", err, tt.target)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "cfg.yaml")
	cfg := Defaults()
	cfg.ControlData = "/data/cv.tsv"
	cfg.Reference = &ReferenceConfig{Language: "en", Dir: "/ref/en"}
	cfg.Logging.Level = "debug"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got.ControlData != cfg.ControlData || got.Logging.Level != "debug" || got.Reference.Language != "en" {
		t.Errorf("Load() = %+v", got)
	}
	if len(got.Quotes.Levels) != len(cfg.Quotes.Levels) {
		t.Errorf("Quotes.Levels len = %d, want %d", len(got.Quotes.Levels), len(cfg.Quotes.Levels))
	}
}
