package config

import "github.com/tkingovr/portal/internal/policy"

// File is the on-disk route table.
type File struct {
	Version  int             `yaml:"version"`
	Settings Settings        `yaml:"settings"`
	Policy   *policy.RuleSet `yaml:"policy,omitempty"`
	Routes   []RouteSpec     `yaml:"routes"`
}

// Settings holds server-wide options. Durations are Go duration strings.
type Settings struct {
	Listen         string `yaml:"listen,omitempty"`
	AdminAddr      string `yaml:"admin_addr,omitempty"`
	LogDir         string `yaml:"log_dir,omitempty"`
	ReadTimeout    string `yaml:"read_timeout,omitempty"`
	WriteTimeout   string `yaml:"write_timeout,omitempty"`
	IdleTimeout    string `yaml:"idle_timeout,omitempty"`
	BodyLimit      int64  `yaml:"body_limit,omitempty"`
	NotFoundStatus int    `yaml:"not_found_status,omitempty"`
	OPAPolicy      string `yaml:"opa_policy,omitempty"`
}

// RouteSpec describes one route. A route matches when every condition
// holds, then produces its single action: dir, file, respond or proxy.
type RouteSpec struct {
	Name string `yaml:"name"`

	// Path is matched segment by segment. "{name}" or "{name:type}"
	// captures a segment; a trailing "*" captures the rest.
	Path    string       `yaml:"path,omitempty"`
	End     bool         `yaml:"end,omitempty"`
	Methods []string     `yaml:"methods,omitempty"`
	Headers []HeaderSpec `yaml:"headers,omitempty"`
	Query   []QuerySpec  `yaml:"query,omitempty"`

	Policy    bool           `yaml:"policy,omitempty"`
	Secrets   bool           `yaml:"secrets,omitempty"`
	RateLimit *RateLimitSpec `yaml:"rate_limit,omitempty"`

	Dir     string       `yaml:"dir,omitempty"`
	File    string       `yaml:"file,omitempty"`
	Respond *RespondSpec `yaml:"respond,omitempty"`
	Proxy   string       `yaml:"proxy,omitempty"`
}

// HeaderSpec matches one request header. With Exact set the value must
// equal it; otherwise the value is parsed as Type and can be referenced
// in a response body as "{name}".
type HeaderSpec struct {
	Name       string `yaml:"name"`
	Type       string `yaml:"type,omitempty"`
	Exact      string `yaml:"exact,omitempty"`
	IgnoreCase bool   `yaml:"ignore_case,omitempty"`
	Optional   bool   `yaml:"optional,omitempty"`
}

// QuerySpec requires one query parameter parsed as Type.
type QuerySpec struct {
	Name string `yaml:"name"`
	Type string `yaml:"type,omitempty"`
}

// RateLimitSpec limits a route to Max requests per Window.
type RateLimitSpec struct {
	Max       int    `yaml:"max"`
	Window    string `yaml:"window"`
	KeyHeader string `yaml:"key_header,omitempty"`
	Global    bool   `yaml:"global,omitempty"`
}

// RespondSpec is a fixed response. "{name}" in Body is replaced with the
// captured value of that name.
type RespondSpec struct {
	Status      int               `yaml:"status,omitempty"`
	Body        string            `yaml:"body,omitempty"`
	ContentType string            `yaml:"content_type,omitempty"`
	Headers     map[string]string `yaml:"headers,omitempty"`
}

// Action names the route's action for display.
func (r *RouteSpec) Action() string {
	switch {
	case r.Dir != "":
		return "dir " + r.Dir
	case r.File != "":
		return "file " + r.File
	case r.Proxy != "":
		return "proxy " + r.Proxy
	case r.Respond != nil:
		return "respond"
	}
	return ""
}
