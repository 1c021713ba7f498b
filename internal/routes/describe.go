package routes

import "strings"

// Info describes a compiled route for display.
type Info struct {
	Name     string   `json:"name" yaml:"name"`
	Path     string   `json:"path" yaml:"path"`
	Methods  []string `json:"methods,omitempty" yaml:"methods,omitempty"`
	Action   string   `json:"action" yaml:"action"`
	Captures []string `json:"captures,omitempty" yaml:"captures,omitempty"`
	Guards   []string `json:"guards,omitempty" yaml:"guards,omitempty"`
}

// Describe lists the routes in evaluation order.
func (t *Table) Describe() []Info {
	out := make([]Info, 0, len(t.Routes))
	for _, r := range t.Routes {
		path := r.Spec.Path
		if path == "" {
			path = "/"
		}
		if r.Spec.End && !strings.HasSuffix(path, "$") {
			path += "$"
		}
		methods := make([]string, len(r.Spec.Methods))
		for i, m := range r.Spec.Methods {
			methods[i] = strings.ToUpper(m)
		}
		out = append(out, Info{
			Name:     r.Spec.Name,
			Path:     path,
			Methods:  methods,
			Action:   r.Spec.Action(),
			Captures: r.Captures,
			Guards:   r.Guards,
		})
	}
	return out
}
