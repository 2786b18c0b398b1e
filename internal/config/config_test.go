package config

import (
	"os"
	"path/filepath"
	"testing"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		configPathEnv, logLevelEnv,
		searchPhrasesEnv, searchSectionEnv, searchPeriodEnv, searchMaxPagesEnv,
		geminiKeyEnv, anthropicKeyEnv, hfTokenEnv,
		smtpHostEnv, smtpPortEnv, smtpUserEnv, smtpPassEnv,
		emailFromEnv, emailFromAltEnv, emailToEnv, emailCcEnv, emailBccEnv,
		subjectPrefixEnv, seenFileEnv,
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Search.Section != "do1" {
		t.Errorf("section = %q, want do1", cfg.Search.Section)
	}
	if cfg.Search.Period != "today" {
		t.Errorf("period = %q, want today", cfg.Search.Period)
	}
	if cfg.Search.MaxPages != 3 {
		t.Errorf("maxPages = %d, want 3", cfg.Search.MaxPages)
	}
	if got := cfg.Search.Location().String(); got != "America/Sao_Paulo" {
		t.Errorf("location = %q, want America/Sao_Paulo", got)
	}
	if len(cfg.Sources) != 1 || cfg.Sources[0].Scanner != "dou-search" {
		t.Errorf("sources = %+v, want single dou-search entry", cfg.Sources)
	}
	if cfg.Email.SubjectPrefix != "[DOU Fiscal]" {
		t.Errorf("subject prefix = %q", cfg.Email.SubjectPrefix)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	clearEnv(t)

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Fatal("expected error for explicit missing config file")
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	body := `
logging:
  level: debug
search:
  phrases:
    - "reforma tributária"
    - "imposto seletivo"
  section: todos
  period: week
  maxPages: 5
email:
  from: bot@example.com
  to:
    - fiscal@example.com
  sendEmpty: true
state:
  file: /tmp/seen.json
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Logging.Level != "debug" {
		t.Errorf("logging level = %q", cfg.Logging.Level)
	}
	if len(cfg.Search.Phrases) != 2 || cfg.Search.Phrases[1] != "imposto seletivo" {
		t.Errorf("phrases = %v", cfg.Search.Phrases)
	}
	if cfg.Search.Section != "todos" || cfg.Search.Period != "week" || cfg.Search.MaxPages != 5 {
		t.Errorf("search = %+v", cfg.Search)
	}
	if !cfg.Email.SendEmpty {
		t.Error("sendEmpty not carried over")
	}
	if cfg.State.File != "/tmp/seen.json" {
		t.Errorf("state file = %q", cfg.State.File)
	}
	// Untouched fields keep their defaults.
	if cfg.AI.Gemini.Model != "gemini-1.5-flash" {
		t.Errorf("gemini model = %q", cfg.AI.Gemini.Model)
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("search:\n  period: month\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(searchPeriodEnv, "any")
	t.Setenv(searchPhrasesEnv, "lei complementar; crédito tributário")
	t.Setenv(emailToEnv, "a@example.com,b@example.com")
	t.Setenv(smtpHostEnv, "smtp.example.com")
	t.Setenv(smtpUserEnv, "robot@example.com")
	t.Setenv(geminiKeyEnv, "key-123")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Search.Period != "any" {
		t.Errorf("period = %q, want any", cfg.Search.Period)
	}
	want := []string{"lei complementar", "crédito tributário"}
	if len(cfg.Search.Phrases) != 2 || cfg.Search.Phrases[0] != want[0] || cfg.Search.Phrases[1] != want[1] {
		t.Errorf("phrases = %v, want %v", cfg.Search.Phrases, want)
	}
	if len(cfg.Email.To) != 2 || cfg.Email.To[1] != "b@example.com" {
		t.Errorf("to = %v", cfg.Email.To)
	}
	if cfg.AI.Gemini.APIKey != "key-123" {
		t.Errorf("gemini key = %q", cfg.AI.Gemini.APIKey)
	}
	// From falls back to the SMTP username when unset.
	if cfg.Email.From != "robot@example.com" {
		t.Errorf("from = %q, want robot@example.com", cfg.Email.From)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cases := []struct {
		name string
		env  map[string]string
	}{
		{"bad section", map[string]string{searchSectionEnv: "do9"}},
		{"bad period", map[string]string{searchPeriodEnv: "yearly"}},
		{"bad recipient", map[string]string{emailToEnv: "not-an-address"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	t.Parallel()

	got := splitList(" a@x.com ,, b@x.com ;c@x.com;")
	want := []string{"a@x.com", "b@x.com", "c@x.com"}
	if len(got) != len(want) {
		t.Fatalf("splitList = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("splitList[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
