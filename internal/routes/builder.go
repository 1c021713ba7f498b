// Package routes compiles a configured route table into a filter tree.
package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/tkingovr/portal/internal/config"
	"github.com/tkingovr/portal/internal/filter"
	"github.com/tkingovr/portal/internal/policy"
)

// ErrNoRoutes is returned when a table has nothing to serve.
var ErrNoRoutes = errors.New("no routes")

// Options holds what route compilation needs beyond the specs.
type Options struct {
	// Engine backs routes with policy enabled.
	Engine policy.Engine

	// BodyLimit caps body reads of the secret scanner.
	BodyLimit int64

	Logger *slog.Logger
}

// Route is one compiled route.
type Route struct {
	Spec     config.RouteSpec
	Filter   *filter.BoxedFilter
	Captures []string
	Guards   []string
}

// Table is the compiled route table. Routes are tried in order.
type Table struct {
	Routes []*Route
	filter filter.Filter
}

// Filter returns the whole table as one filter of shape (Reply).
func (t *Table) Filter() filter.Filter { return t.filter }

// Build compiles specs in order.
func Build(specs []config.RouteSpec, opts Options) (*Table, error) {
	if len(specs) == 0 {
		return nil, ErrNoRoutes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	t := &Table{}
	alts := make([]filter.Filter, 0, len(specs))
	for _, spec := range specs {
		r, err := compile(spec, opts)
		if err != nil {
			return nil, fmt.Errorf("route %q: %w", spec.Name, err)
		}
		t.Routes = append(t.Routes, r)
		alts = append(alts, r.Filter)
	}
	t.filter = filter.OrAll(alts[0], alts[1:]...)
	return t, nil
}

// FromConfig builds the policy engine named by cfg and compiles its routes.
func FromConfig(cfg *config.Config, logger *slog.Logger) (*Table, policy.Engine, error) {
	engine, err := NewEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	t, err := Build(cfg.File.Routes, Options{Engine: engine, BodyLimit: cfg.BodyLimit, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	return t, engine, nil
}

// NewEngine returns the OPA engine when opa_policy is set, otherwise a
// YAML engine over the policy section. It returns nil when neither is
// configured.
func NewEngine(cfg *config.Config) (policy.Engine, error) {
	switch {
	case cfg.OPAPolicy != "":
		e, err := policy.NewOPAEngine(cfg.OPAPolicy)
		if err != nil {
			return nil, fmt.Errorf("creating OPA engine: %w", err)
		}
		return e, nil
	case cfg.File != nil && cfg.File.Policy != nil:
		e, err := policy.NewYAMLEngineFromRules(cfg.File.Policy)
		if err != nil {
			return nil, fmt.Errorf("creating policy engine: %w", err)
		}
		return e, nil
	}
	return nil, nil
}

// compile turns one route spec into conditions, captures, an action and
// guards, in that evaluation order.
func compile(spec config.RouteSpec, opts Options) (*Route, error) {
	b := &routeBuilder{}

	if err := b.path(spec.Path); err != nil {
		return nil, err
	}
	if spec.End {
		b.add(filter.PathEnd())
	}
	if len(spec.Methods) > 0 {
		ms := make([]filter.Filter, len(spec.Methods))
		for i, m := range spec.Methods {
			ms[i] = filter.Method(m)
		}
		b.add(filter.OrAll(ms[0], ms[1:]...))
	}
	for _, h := range spec.Headers {
		if err := b.header(h); err != nil {
			return nil, err
		}
	}
	for _, q := range spec.Query {
		vt, err := lookupType(q.Type)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", q.Name, err)
		}
		b.capture(q.Name, vt.query(q.Name))
	}

	reply, err := action(spec, b, opts)
	if err != nil {
		return nil, err
	}

	var guards []filter.Filter
	var guardNames []string
	if spec.Policy {
		if opts.Engine == nil {
			return nil, fmt.Errorf("policy enabled but no engine configured")
		}
		guards = append(guards, filter.Policy(opts.Engine, filter.WithPolicyLogger(opts.Logger)))
		guardNames = append(guardNames, "policy")
	}
	if spec.Secrets {
		guards = append(guards, filter.Secrets(filter.WithSecretBodyLimit(opts.BodyLimit)))
		guardNames = append(guardNames, "secrets")
	}
	if rl := spec.RateLimit; rl != nil {
		window, err := time.ParseDuration(rl.Window)
		if err != nil {
			return nil, fmt.Errorf("rate_limit.window: %w", err)
		}
		guards = append(guards, filter.RateLimit(filter.RateLimitConfig{
			Max:       rl.Max,
			Window:    window,
			KeyHeader: rl.KeyHeader,
			Global:    rl.Global,
		}))
		guardNames = append(guardNames, fmt.Sprintf("rate_limit %d/%s", rl.Max, window))
	}

	return &Route{
		Spec:     spec,
		Filter:   filter.Boxed(filter.AndAll(reply, guards...)),
		Captures: b.names,
		Guards:   guardNames,
	}, nil
}

// routeBuilder accumulates the matching part of a route and remembers
// which tuple index holds each named capture.
type routeBuilder struct {
	parts []filter.Filter
	names []string
	index map[string]int
	arity int
}

func (b *routeBuilder) add(f filter.Filter) {
	b.parts = append(b.parts, f)
	b.arity += f.Shape().Arity()
}

func (b *routeBuilder) capture(name string, f filter.Filter) {
	if b.index == nil {
		b.index = make(map[string]int)
	}
	b.index[name] = b.arity
	b.names = append(b.names, name)
	b.add(f)
}

func (b *routeBuilder) matcher() filter.Filter {
	if len(b.parts) == 0 {
		return filter.Any()
	}
	return filter.AndAll(b.parts[0], b.parts[1:]...)
}

func (b *routeBuilder) path(p string) error {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	for i, seg := range segs {
		switch {
		case seg == "":
			continue
		case seg == "*":
			if i != len(segs)-1 {
				return fmt.Errorf("path %q: * must be the last segment", p)
			}
			b.capture("tail", filter.Tail())
		case strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}"):
			name, typ, _ := strings.Cut(seg[1:len(seg)-1], ":")
			if name == "" {
				return fmt.Errorf("path %q: empty parameter name", p)
			}
			vt, err := lookupType(typ)
			if err != nil {
				return fmt.Errorf("path parameter %q: %w", name, err)
			}
			b.capture(name, vt.param())
		default:
			b.add(filter.Path(seg))
		}
	}
	return nil
}

func (b *routeBuilder) header(h config.HeaderSpec) error {
	switch {
	case h.Exact != "" && h.IgnoreCase:
		b.add(filter.HeaderExactIgnoreCase(h.Name, h.Exact))
	case h.Exact != "":
		b.add(filter.HeaderExact(h.Name, h.Exact))
	default:
		vt, err := lookupType(h.Type)
		if err != nil {
			return fmt.Errorf("header %q: %w", h.Name, err)
		}
		name := strings.ToLower(h.Name)
		if h.Optional {
			b.capture(name, vt.optional(h.Name))
		} else {
			b.capture(name, vt.header(h.Name))
		}
	}
	return nil
}

// action appends the route's action to the matcher, giving shape (Reply).
func action(spec config.RouteSpec, b *routeBuilder, opts Options) (filter.Filter, error) {
	m := b.matcher()
	switch {
	case spec.Dir != "":
		return filter.ToReply(filter.And(filter.Discard(m), filter.Dir(spec.Dir))), nil
	case spec.File != "":
		return filter.ToReply(filter.And(filter.Discard(m), filter.File(spec.File))), nil
	case spec.Proxy != "":
		fwd, err := filter.Forward(spec.Proxy, opts.Logger)
		if err != nil {
			return nil, err
		}
		return filter.ToReply(filter.And(filter.Discard(m), fwd)), nil
	case spec.Respond != nil:
		render, err := responder(spec.Respond, b.index)
		if err != nil {
			return nil, err
		}
		return filter.MapTuple(m, render), nil
	}
	return nil, fmt.Errorf("no action")
}

// responder renders a fixed response, substituting "{name}" with captured
// values.
func responder(rs *config.RespondSpec, index map[string]int) (func(filter.Tuple) filter.Reply, error) {
	status := rs.Status
	if status == 0 {
		status = http.StatusOK
	}
	contentType := rs.ContentType
	if contentType == "" {
		contentType = "text/plain; charset=utf-8"
	}
	for _, name := range placeholders(rs.Body) {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("respond body references unknown capture {%s}", name)
		}
	}

	return func(t filter.Tuple) filter.Reply {
		body := rs.Body
		if len(index) > 0 {
			pairs := make([]string, 0, 2*len(index))
			for name, i := range index {
				pairs = append(pairs, "{"+name+"}", display(t[i]))
			}
			body = strings.NewReplacer(pairs...).Replace(body)
		}
		var reply filter.Reply = filter.Bytes(contentType, []byte(body))
		if status != http.StatusOK {
			reply = filter.WithStatus(status, reply)
		}
		for k, v := range rs.Headers {
			reply = filter.WithHeader(k, v, reply)
		}
		return reply
	}, nil
}

var placeholderRE = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_-]*)\}`)

func placeholders(s string) []string {
	var names []string
	for _, m := range placeholderRE.FindAllStringSubmatch(s, -1) {
		names = append(names, m[1])
	}
	return names
}

// display formats a captured value. Absent optional headers are empty.
func display(v any) string {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return ""
		}
		if s, ok := v.(fmt.Stringer); ok {
			return s.String()
		}
		return fmt.Sprint(rv.Elem().Interface())
	}
	return fmt.Sprint(v)
}
