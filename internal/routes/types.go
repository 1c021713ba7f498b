package routes

import (
	"fmt"
	"net/netip"
	"net/url"
	"sort"
	"time"

	"github.com/tkingovr/portal/internal/filter"
)

// valueType builds the typed primitives for one configured type name.
type valueType struct {
	param    func() filter.Filter
	header   func(name string) filter.Filter
	optional func(name string) filter.Filter
	query    func(name string) filter.Filter
}

func typeOf[T any]() valueType {
	return valueType{
		param:    filter.Param[T],
		header:   filter.Header[T],
		optional: filter.HeaderOptional[T],
		query:    filter.Query[T],
	}
}

var valueTypes = map[string]valueType{
	"string":    typeOf[string](),
	"int":       typeOf[int](),
	"int64":     typeOf[int64](),
	"uint":      typeOf[uint](),
	"float":     typeOf[float64](),
	"bool":      typeOf[bool](),
	"duration":  typeOf[time.Duration](),
	"addr":      typeOf[netip.Addr](),
	"addr_port": typeOf[netip.AddrPort](),
	"url":       typeOf[*url.URL](),
}

func lookupType(name string) (valueType, error) {
	if name == "" {
		name = "string"
	}
	vt, ok := valueTypes[name]
	if !ok {
		return valueType{}, fmt.Errorf("unknown type %q (known: %v)", name, TypeNames())
	}
	return vt, nil
}

// TypeNames lists the value types usable in path parameters, headers and
// query conditions.
func TypeNames() []string {
	names := make([]string, 0, len(valueTypes))
	for n := range valueTypes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
