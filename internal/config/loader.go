package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LookupFunc resolves one environment variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration from the process environment.
func Load() (*Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom builds the configuration from lookup. Struct fields are filled
// from their env tags (envAlt names a fallback variable, default a fallback
// value, sep the list separator). A configured rules file then replaces the
// filter lists it names, and the result is validated.
//
// Every unparsable variable is reported, not just the first.
func LoadFrom(lookup LookupFunc) (*Config, error) {
	cfg := &Config{}

	env := envReader{lookup: lookup}
	env.fill(reflect.ValueOf(cfg).Elem())
	if len(env.problems) > 0 {
		return nil, fmt.Errorf("config load: %s", strings.Join(env.problems, "; "))
	}

	if cfg.Filter.RulesFile != "" {
		rules, err := LoadRules(cfg.Filter.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("config load: %w", err)
		}
		rules.Apply(&cfg.Filter)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

type envReader struct {
	lookup   LookupFunc
	problems []string
}

func (e *envReader) get(key string) string {
	if key == "" {
		return ""
	}
	v, _ := e.lookup(key)
	return v
}

// fill walks v's fields, descending into nested config sections.
func (e *envReader) fill(v reflect.Value) {
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			e.fill(fv)
			continue
		}

		name := field.Tag.Get("env")
		if name == "" {
			continue
		}
		raw := e.get(name)
		if raw == "" {
			raw = e.get(field.Tag.Get("envAlt"))
		}
		if raw == "" {
			raw = field.Tag.Get("default")
		}
		if raw == "" {
			continue
		}

		sep := field.Tag.Get("sep")
		if sep == "" {
			sep = ","
		}
		if err := assign(fv, raw, sep); err != nil {
			e.problems = append(e.problems, fmt.Sprintf("%s=%q: %v", name, raw, err))
		}
	}
}

var durationType = reflect.TypeOf(time.Duration(0))

// assign parses raw into dst according to dst's type.
func assign(dst reflect.Value, raw, sep string) error {
	if dst.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		dst.SetInt(int64(d))
		return nil
	}

	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		dst.SetInt(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		dst.SetBool(b)
	case reflect.Slice:
		if dst.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported list of %s", dst.Type().Elem().Kind())
		}
		dst.Set(reflect.ValueOf(splitList(raw, sep)))
	default:
		return fmt.Errorf("unsupported field type %s", dst.Kind())
	}
	return nil
}

// splitList splits value on sep, trimming whitespace and dropping blanks.
func splitList(value, sep string) []string {
	parts := strings.Split(value, sep)
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// problems collects validation failures across config sections.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Validate reports every invalid setting in one error.
func (c *Config) Validate() error {
	var p problems
	c.Server.validate(&p)
	c.Database.validate(&p)
	c.Upload.validate(&p)
	c.Rate.validate(&p)
	c.Security.validate(&p)
	c.Session.validate(&p)
	c.Logging.validate(&p)

	if len(p) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(p, "\n  - "))
	}
	return nil
}

func (c *ServerConfig) validate(p *problems) {
	if c.Port <= 0 || c.Port > 65535 {
		p.addf("SERVER_PORT (%d) must be 1-65535", c.Port)
	}
	if c.ReadTimeout < 0 {
		p.addf("SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.ShutdownTimeout <= 0 {
		p.addf("SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
}

// Pool sizes only matter when an audit database is configured.
func (c *DatabaseConfig) validate(p *problems) {
	if c.URL == "" {
		return
	}
	if c.MaxConns <= 0 {
		p.addf("DB_MAX_CONNS must be positive")
	}
	if c.MinConns < 0 {
		p.addf("DB_MIN_CONNS must be non-negative")
	}
	if c.MaxConns < c.MinConns {
		p.addf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", c.MaxConns, c.MinConns)
	}
}

func (c *UploadConfig) validate(p *problems) {
	if c.MaxFileSize <= 0 {
		p.addf("UPLOAD_MAX_FILE_SIZE must be positive")
	}
	if c.MaxConcurrent <= 0 {
		p.addf("UPLOAD_MAX_CONCURRENT must be positive")
	}
}

func (c *RateLimitConfig) validate(p *problems) {
	if !c.Enabled {
		return
	}
	if c.RequestsPerMinute <= 0 {
		p.addf("RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Burst <= 0 {
		p.addf("RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}
}

func (c *SecurityConfig) validate(p *problems) {
	if c.RequireAPIKey && len(c.APIKeys) == 0 {
		p.addf("API_KEYS must be set when REQUIRE_API_KEY is true")
	}
}

func (c *SessionConfig) validate(p *problems) {
	if c.IdleTimeout <= 0 {
		p.addf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.SweepInterval <= 0 {
		p.addf("SESSION_SWEEP_INTERVAL must be positive")
	}
	if c.MaxSessions <= 0 {
		p.addf("SESSION_MAX must be positive")
	}
}

func (c *LoggingConfig) validate(p *problems) {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Level)
	}
	switch strings.ToLower(c.Format) {
	case "text", "json":
	default:
		p.addf("LOG_FORMAT (%q) must be one of: text, json", c.Format)
	}
}

// String renders the config for logging with the database URL masked.
func (c *Config) String() string {
	db := "disabled"
	if c.Database.URL != "" {
		db = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d}, ", c.Server.Host, c.Server.Port)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d}, ", db, c.Database.MaxConns)
	fmt.Fprintf(&b, "Upload: {MaxFileSize: %d, MaxConcurrent: %d}, ", c.Upload.MaxFileSize, c.Upload.MaxConcurrent)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ", c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Filter: {AddressPrefixes: %d, EmailSuffixes: %d}, ",
		len(c.Filter.AddressPrefixes), len(c.Filter.EmailSuffixes))
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
