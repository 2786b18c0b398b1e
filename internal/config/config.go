package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone   = "America/Sao_Paulo"
	defaultConfigFile = "config.yml"

	configPathEnv = "DOUBOT_CONFIG"
	logLevelEnv   = "LOG_LEVEL"

	searchPhrasesEnv  = "DOU_PHRASES"
	searchSectionEnv  = "DOU_SECTION"
	searchPeriodEnv   = "DOU_PERIOD"
	searchMaxPagesEnv = "DOU_MAX_PAGES"

	geminiKeyEnv    = "GEMINI_API_KEY"
	anthropicKeyEnv = "ANTHROPIC_API_KEY"
	hfTokenEnv      = "HF_TOKEN"

	smtpHostEnv = "SMTP_HOST"
	smtpPortEnv = "SMTP_PORT"
	smtpUserEnv = "SMTP_USER"
	smtpPassEnv = "SMTP_PASS"

	emailFromEnv     = "EMAIL_FROM"
	emailFromAltEnv  = "MAIL_FROM"
	emailToEnv       = "EMAIL_TO"
	emailCcEnv       = "EMAIL_CC"
	emailBccEnv      = "EMAIL_BCC"
	subjectPrefixEnv = "EMAIL_SUBJECT_PREFIX"

	seenFileEnv = "SEEN_FILE"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging LoggingConfig  `yaml:"logging"`
	Search  SearchConfig   `yaml:"search"`
	Sources []SourceConfig `yaml:"sources"`
	Browser BrowserConfig  `yaml:"browser"`
	AI      AIConfig       `yaml:"ai"`
	Filter  FilterConfig   `yaml:"filter"`
	Email   EmailConfig    `yaml:"email"`
	State   StateConfig    `yaml:"state"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SearchConfig describes the gazette query shared by all scanners.
type SearchConfig struct {
	Phrases  []string `yaml:"phrases"`
	Section  string   `yaml:"section"`
	Period   string   `yaml:"period"`
	MaxPages int      `yaml:"maxPages"`
	Timezone string   `yaml:"timezone"`

	location *time.Location `yaml:"-"`
}

// Location resolves the configured timezone to a time.Location.
func (s SearchConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SourceConfig binds a named source to a scanner strategy.
type SourceConfig struct {
	Name    string            `yaml:"name"`
	Scanner string            `yaml:"scanner"`
	Feeds   []FeedConfig      `yaml:"feeds"`
	Options map[string]string `yaml:"options"`
}

// FeedConfig holds one concrete feed endpoint for the RSS strategy.
type FeedConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// BrowserConfig selects how search pages are rendered.
type BrowserConfig struct {
	Headless          bool   `yaml:"headless"`
	UserAgent         string `yaml:"userAgent"`
	TimeoutSeconds    int    `yaml:"timeoutSeconds"`
	RequestIntervalMs int    `yaml:"requestIntervalMs"`
}

// AIConfig groups the summarization providers. A provider joins the chain
// only when its credential is present.
type AIConfig struct {
	Enabled     bool              `yaml:"enabled"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Anthropic   AnthropicConfig   `yaml:"anthropic"`
	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
}

// GeminiConfig defines how to contact the Generative Language API.
type GeminiConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	APIKey   string `yaml:"apiKey"`
}

// AnthropicConfig defines the Anthropic Messages API parameters.
type AnthropicConfig struct {
	Model     string `yaml:"model"`
	APIKey    string `yaml:"apiKey"`
	MaxTokens int    `yaml:"maxTokens"`
}

// HuggingFaceConfig defines the hosted inference endpoint and model.
type HuggingFaceConfig struct {
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
	Token    string `yaml:"token"`
}

// FilterConfig carries the fiscal keyword list; empty means built-in defaults.
type FilterConfig struct {
	Keywords []string `yaml:"keywords"`
}

// EmailConfig wires all data required to deliver the digest.
type EmailConfig struct {
	SMTP          SMTPConfig `yaml:"smtp"`
	From          string     `yaml:"from"`
	To            []string   `yaml:"to"`
	Cc            []string   `yaml:"cc"`
	Bcc           []string   `yaml:"bcc"`
	SubjectPrefix string     `yaml:"subjectPrefix"`
	SendEmpty     bool       `yaml:"sendEmpty"`
}

// SMTPConfig describes the outbound mail relay.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// StateConfig locates the seen-registry file.
type StateConfig struct {
	File       string `yaml:"file"`
	MaxEntries int    `yaml:"maxEntries"`
}

// Load reads YAML configuration and applies environment overrides. A missing
// default config file is fine; a path given explicitly (flag or DOUBOT_CONFIG)
// must exist.
func Load(path string) (Config, error) {
	cfg := defaultConfig()

	explicit := path != ""
	if path == "" {
		path = os.Getenv(configPathEnv)
		explicit = path != ""
	}
	if path == "" {
		path = defaultConfigFile
	}

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	case explicit:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(searchPhrasesEnv); v != "" {
		c.Search.Phrases = splitList(v)
	}
	if v := os.Getenv(searchSectionEnv); v != "" {
		c.Search.Section = v
	}
	if v := os.Getenv(searchPeriodEnv); v != "" {
		c.Search.Period = v
	}
	if v := os.Getenv(searchMaxPagesEnv); v != "" {
		if pages, err := strconv.Atoi(v); err == nil && pages > 0 {
			c.Search.MaxPages = pages
		}
	}

	if v := os.Getenv(geminiKeyEnv); v != "" {
		c.AI.Gemini.APIKey = v
	}
	if v := os.Getenv(anthropicKeyEnv); v != "" {
		c.AI.Anthropic.APIKey = v
	}
	if v := os.Getenv(hfTokenEnv); v != "" {
		c.AI.HuggingFace.Token = v
	}

	if v := os.Getenv(smtpHostEnv); v != "" {
		c.Email.SMTP.Host = v
	}
	if v := os.Getenv(smtpPortEnv); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Email.SMTP.Port = port
		}
	}
	if v := os.Getenv(smtpUserEnv); v != "" {
		c.Email.SMTP.Username = v
	}
	if v := os.Getenv(smtpPassEnv); v != "" {
		c.Email.SMTP.Password = v
	}

	if v := os.Getenv(emailFromEnv); v != "" {
		c.Email.From = v
	} else if v := os.Getenv(emailFromAltEnv); v != "" {
		c.Email.From = v
	}
	if v := os.Getenv(emailToEnv); v != "" {
		c.Email.To = splitList(v)
	}
	if v := os.Getenv(emailCcEnv); v != "" {
		c.Email.Cc = splitList(v)
	}
	if v := os.Getenv(emailBccEnv); v != "" {
		c.Email.Bcc = splitList(v)
	}
	if v := os.Getenv(subjectPrefixEnv); v != "" {
		c.Email.SubjectPrefix = v
	}

	if v := os.Getenv(seenFileEnv); v != "" {
		c.State.File = v
	}

	if c.Email.From == "" {
		c.Email.From = c.Email.SMTP.Username
	}
}

func (c *Config) bindTimezone() {
	tz := c.Search.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	c.Search.location = loc
}

func (c *Config) validate() error {
	switch c.Search.Section {
	case "do1", "do2", "do3", "todos":
	default:
		return fmt.Errorf("config: invalid search section %q (want do1, do2, do3 or todos)", c.Search.Section)
	}

	switch c.Search.Period {
	case "today", "week", "month", "any":
	default:
		return fmt.Errorf("config: invalid search period %q (want today, week, month or any)", c.Search.Period)
	}

	if c.Search.MaxPages <= 0 {
		return fmt.Errorf("config: search.maxPages must be positive")
	}

	for _, group := range []struct {
		name  string
		addrs []string
	}{
		{"email.to", c.Email.To},
		{"email.cc", c.Email.Cc},
		{"email.bcc", c.Email.Bcc},
	} {
		for _, addr := range group.addrs {
			if !strings.Contains(addr, "@") {
				return fmt.Errorf("config: %s entry %q is not an email address", group.name, addr)
			}
		}
	}

	if c.Email.From != "" && !strings.Contains(c.Email.From, "@") {
		return fmt.Errorf("config: email.from %q is not an email address", c.Email.From)
	}

	return nil
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}

	if len(override.Search.Phrases) > 0 {
		base.Search.Phrases = override.Search.Phrases
	}
	if override.Search.Section != "" {
		base.Search.Section = override.Search.Section
	}
	if override.Search.Period != "" {
		base.Search.Period = override.Search.Period
	}
	if override.Search.MaxPages > 0 {
		base.Search.MaxPages = override.Search.MaxPages
	}
	if override.Search.Timezone != "" {
		base.Search.Timezone = override.Search.Timezone
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	if override.Browser.Headless {
		base.Browser.Headless = true
	}
	if override.Browser.UserAgent != "" {
		base.Browser.UserAgent = override.Browser.UserAgent
	}
	if override.Browser.TimeoutSeconds > 0 {
		base.Browser.TimeoutSeconds = override.Browser.TimeoutSeconds
	}
	if override.Browser.RequestIntervalMs > 0 {
		base.Browser.RequestIntervalMs = override.Browser.RequestIntervalMs
	}

	if override.AI.Enabled {
		base.AI.Enabled = true
	}
	if override.AI.Gemini.Endpoint != "" {
		base.AI.Gemini.Endpoint = override.AI.Gemini.Endpoint
	}
	if override.AI.Gemini.Model != "" {
		base.AI.Gemini.Model = override.AI.Gemini.Model
	}
	if override.AI.Gemini.APIKey != "" {
		base.AI.Gemini.APIKey = override.AI.Gemini.APIKey
	}
	if override.AI.Anthropic.Model != "" {
		base.AI.Anthropic.Model = override.AI.Anthropic.Model
	}
	if override.AI.Anthropic.APIKey != "" {
		base.AI.Anthropic.APIKey = override.AI.Anthropic.APIKey
	}
	if override.AI.Anthropic.MaxTokens > 0 {
		base.AI.Anthropic.MaxTokens = override.AI.Anthropic.MaxTokens
	}
	if override.AI.HuggingFace.Endpoint != "" {
		base.AI.HuggingFace.Endpoint = override.AI.HuggingFace.Endpoint
	}
	if override.AI.HuggingFace.Model != "" {
		base.AI.HuggingFace.Model = override.AI.HuggingFace.Model
	}
	if override.AI.HuggingFace.Token != "" {
		base.AI.HuggingFace.Token = override.AI.HuggingFace.Token
	}

	if len(override.Filter.Keywords) > 0 {
		base.Filter.Keywords = override.Filter.Keywords
	}

	if override.Email.SMTP.Host != "" {
		base.Email.SMTP.Host = override.Email.SMTP.Host
	}
	if override.Email.SMTP.Port > 0 {
		base.Email.SMTP.Port = override.Email.SMTP.Port
	}
	if override.Email.SMTP.Username != "" {
		base.Email.SMTP.Username = override.Email.SMTP.Username
	}
	if override.Email.SMTP.Password != "" {
		base.Email.SMTP.Password = override.Email.SMTP.Password
	}
	if override.Email.From != "" {
		base.Email.From = override.Email.From
	}
	if len(override.Email.To) > 0 {
		base.Email.To = override.Email.To
	}
	if len(override.Email.Cc) > 0 {
		base.Email.Cc = override.Email.Cc
	}
	if len(override.Email.Bcc) > 0 {
		base.Email.Bcc = override.Email.Bcc
	}
	if override.Email.SubjectPrefix != "" {
		base.Email.SubjectPrefix = override.Email.SubjectPrefix
	}
	if override.Email.SendEmpty {
		base.Email.SendEmpty = true
	}

	if override.State.File != "" {
		base.State.File = override.State.File
	}
	if override.State.MaxEntries > 0 {
		base.State.MaxEntries = override.State.MaxEntries
	}

	return base
}

// splitList splits comma- or semicolon-separated values, trimming blanks.
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info"},
		Search: SearchConfig{
			Phrases:  []string{"reforma tributária"},
			Section:  "do1",
			Period:   "today",
			MaxPages: 3,
			Timezone: defaultTimezone,
		},
		Sources: []SourceConfig{
			{Name: "dou", Scanner: "dou-search"},
		},
		Browser: BrowserConfig{
			Headless:          false,
			TimeoutSeconds:    30,
			RequestIntervalMs: 1000,
		},
		AI: AIConfig{
			Gemini: GeminiConfig{
				Endpoint: "https://generativelanguage.googleapis.com/v1beta",
				Model:    "gemini-1.5-flash",
			},
			Anthropic: AnthropicConfig{
				Model:     "claude-3-5-haiku-latest",
				MaxTokens: 400,
			},
			HuggingFace: HuggingFaceConfig{
				Endpoint: "https://api-inference.huggingface.co/models",
				Model:    "recogna-nlp/ptt5-base-summ-xlsum",
			},
		},
		Email: EmailConfig{
			SMTP:          SMTPConfig{Port: 587},
			SubjectPrefix: "[DOU Fiscal]",
		},
		State: StateConfig{
			File:       "state/seen.json",
			MaxEntries: 5000,
		},
	}
}
