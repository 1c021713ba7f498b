// Package config loads the route table and server settings.
package config

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tkingovr/portal/api"
	"github.com/tkingovr/portal/internal/policy"
)

// Config is the runtime configuration.
type Config struct {
	File *File
	Path string

	Listen         string
	AdminAddr      string
	LogDir         string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	BodyLimit      int64
	NotFoundStatus int
	OPAPolicy      string
}

// Load reads a route table file and produces a runtime Config. Relative
// dir, file and opa_policy paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	f, err := parse(data)
	if err != nil {
		return nil, err
	}
	resolvePaths(f, filepath.Dir(path))
	return fromFile(f, path)
}

// LoadBytes parses YAML data and produces a runtime Config.
func LoadBytes(data []byte) (*Config, error) {
	f, err := parse(data)
	if err != nil {
		return nil, err
	}
	return fromFile(f, "")
}

func parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	if err := Validate(&f); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &f, nil
}

func fromFile(f *File, path string) (*Config, error) {
	s := f.Settings
	cfg := &Config{
		File:           f,
		Path:           path,
		Listen:         orDefault(s.Listen, DefaultListen),
		AdminAddr:      orDefault(s.AdminAddr, DefaultAdminAddr),
		LogDir:         expandHome(orDefault(s.LogDir, DefaultLogDir())),
		BodyLimit:      s.BodyLimit,
		NotFoundStatus: s.NotFoundStatus,
		OPAPolicy:      s.OPAPolicy,
	}
	if cfg.BodyLimit <= 0 {
		cfg.BodyLimit = DefaultBodyLimit
	}

	var err error
	if cfg.ReadTimeout, err = parseDuration("read_timeout", s.ReadTimeout, DefaultReadTimeout); err != nil {
		return nil, err
	}
	if cfg.WriteTimeout, err = parseDuration("write_timeout", s.WriteTimeout, DefaultWriteTimeout); err != nil {
		return nil, err
	}
	if cfg.IdleTimeout, err = parseDuration("idle_timeout", s.IdleTimeout, DefaultIdleTimeout); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the route table for structural errors. Errors name the
// offending route.
func Validate(f *File) error {
	if f.Version != 0 && f.Version != 1 {
		return fmt.Errorf("unsupported config version %d", f.Version)
	}
	if f.Policy != nil {
		if err := policy.Validate(f.Policy); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	if st := f.Settings.NotFoundStatus; st != 0 && (st < 400 || st > 599) {
		return fmt.Errorf("not_found_status %d is not an error status", st)
	}
	if len(f.Routes) == 0 {
		return fmt.Errorf("no routes defined")
	}

	seen := make(map[string]bool)
	for i := range f.Routes {
		r := &f.Routes[i]
		if r.Name == "" {
			return fmt.Errorf("route %d: name is required", i)
		}
		if seen[r.Name] {
			return fmt.Errorf("route %q: duplicate name", r.Name)
		}
		seen[r.Name] = true
		if err := validateRoute(r); err != nil {
			return fmt.Errorf("route %q: %w", r.Name, err)
		}
		if r.Policy && f.Policy == nil && f.Settings.OPAPolicy == "" {
			return fmt.Errorf("route %q: policy enabled but no policy rules or opa_policy configured", r.Name)
		}
	}
	return nil
}

func validateRoute(r *RouteSpec) error {
	if r.Path != "" && !strings.HasPrefix(r.Path, "/") {
		return fmt.Errorf("path %q must start with /", r.Path)
	}

	actions := 0
	for _, set := range []bool{r.Dir != "", r.File != "", r.Respond != nil, r.Proxy != ""} {
		if set {
			actions++
		}
	}
	if actions != 1 {
		return fmt.Errorf("exactly one of dir, file, respond or proxy is required, got %d", actions)
	}

	for _, m := range r.Methods {
		if !validMethod(m) {
			return fmt.Errorf("unknown method %q", m)
		}
	}
	for _, h := range r.Headers {
		if h.Name == "" {
			return fmt.Errorf("header condition without name")
		}
		if h.Exact != "" && h.Type != "" {
			return fmt.Errorf("header %q: exact and type are exclusive", h.Name)
		}
	}
	for _, q := range r.Query {
		if q.Name == "" {
			return fmt.Errorf("query condition without name")
		}
	}
	if rl := r.RateLimit; rl != nil {
		if rl.Max <= 0 {
			return fmt.Errorf("rate_limit.max must be positive")
		}
		d, err := time.ParseDuration(rl.Window)
		if err != nil || d <= 0 {
			return fmt.Errorf("rate_limit.window %q must be a positive duration", rl.Window)
		}
	}
	if rs := r.Respond; rs != nil && rs.Status != 0 && (rs.Status < 100 || rs.Status > 599) {
		return fmt.Errorf("respond.status %d out of range", rs.Status)
	}
	return nil
}

func validMethod(m string) bool {
	switch strings.ToUpper(m) {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
		return true
	}
	return false
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", field, value, err)
	}
	return d, nil
}

func resolvePaths(f *File, base string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) || strings.HasPrefix(p, "~/") {
			return expandHome(p)
		}
		return filepath.Join(base, p)
	}
	f.Settings.OPAPolicy = abs(f.Settings.OPAPolicy)
	for i := range f.Routes {
		f.Routes[i].Dir = abs(f.Routes[i].Dir)
		f.Routes[i].File = abs(f.Routes[i].File)
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfig returns a config serving a single index route, for when
// no config file is given.
func DefaultConfig() *Config {
	f := &File{
		Version: 1,
		Policy:  &policy.RuleSet{DefaultAction: api.VerdictAllow},
		Routes: []RouteSpec{{
			Name:    "index",
			Path:    "/",
			End:     true,
			Methods: []string{http.MethodGet, http.MethodHead},
			Respond: &RespondSpec{Body: "portal is running\n"},
		}},
	}
	cfg, _ := fromFile(f, "")
	return cfg
}

// YAML serializes the route table for display or export.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c.File)
}
