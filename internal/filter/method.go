package filter

import (
	"net/http"
	"strings"
)

type method struct {
	name string
}

// Method matches requests using the given method.
func Method(name string) Filter {
	return &method{name: strings.ToUpper(name)}
}

func Get() Filter     { return Method(http.MethodGet) }
func Head() Filter    { return Method(http.MethodHead) }
func Post() Filter    { return Method(http.MethodPost) }
func Put() Filter     { return Method(http.MethodPut) }
func Patch() Filter   { return Method(http.MethodPatch) }
func Delete() Filter  { return Method(http.MethodDelete) }
func Options() Filter { return Method(http.MethodOptions) }

func (m *method) Shape() Shape { return Unit }

func (m *method) Extract(rt *Route) (Tuple, *Rejection) {
	if rt.Method() != m.name {
		return nil, MethodMismatch(m.name, rt.Method())
	}
	return Tuple{}, nil
}
