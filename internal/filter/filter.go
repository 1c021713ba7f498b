package filter

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
)

// Filter is a single unit of request matching.
//
// Filters are built once at startup and shared by every request, so
// implementations must not keep per-request state outside of the Route
// they are given.
type Filter interface {
	// Extract evaluates the filter against the route. On success it
	// returns a tuple shaped as Shape() and a nil rejection.
	Extract(rt *Route) (Tuple, *Rejection)

	// Shape describes the tuple a successful Extract yields.
	Shape() Shape
}

// Tuple is the ordered list of values a filter extracts.
type Tuple []any

// Shape lists the static types of a tuple, one entry per element.
type Shape []reflect.Type

// Unit is the empty shape of filters that match without extracting.
var Unit = Shape{}

// ShapeOf returns the single-element shape for T.
func ShapeOf[T any]() Shape {
	return Shape{reflect.TypeFor[T]()}
}

// Arity returns the number of tuple elements.
func (s Shape) Arity() int { return len(s) }

// Equal reports whether both shapes have the same element types in order.
func (s Shape) Equal(o Shape) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

// Concat returns a new shape with o appended to s.
func (s Shape) Concat(o Shape) Shape {
	out := make(Shape, 0, len(s)+len(o))
	out = append(out, s...)
	return append(out, o...)
}

func (s Shape) String() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = t.String()
	}
	if len(parts) == 1 {
		return "(" + parts[0] + ",)"
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// check verifies that t is a valid instance of s.
func (s Shape) check(t Tuple) error {
	if len(t) != len(s) {
		return fmt.Errorf("tuple has %d elements, shape %s wants %d", len(t), s, len(s))
	}
	for i, want := range s {
		v := t[i]
		if v == nil {
			switch want.Kind() {
			case reflect.Interface, reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
				continue
			}
			return fmt.Errorf("element %d is nil, shape %s wants %s", i, s, want)
		}
		if !reflect.TypeOf(v).AssignableTo(want) {
			return fmt.Errorf("element %d is %T, shape %s wants %s", i, v, s, want)
		}
	}
	return nil
}

// Value returns element i of t as T. It panics when the element is missing
// or of another type, which can only happen when a caller disagrees with
// the filter's Shape.
func Value[T any](t Tuple, i int) T {
	if i < 0 || i >= len(t) {
		panic(fmt.Sprintf("filter: tuple index %d out of range (arity %d)", i, len(t)))
	}
	if t[i] == nil {
		var zero T
		return zero
	}
	v, ok := t[i].(T)
	if !ok {
		panic(fmt.Sprintf("filter: tuple element %d is %T, not %s", i, t[i], reflect.TypeFor[T]()))
	}
	return v
}

// Evaluate runs f once against r using a fresh Route.
func Evaluate(f Filter, r *http.Request) (Tuple, *Rejection) {
	return EvaluateRoute(f, NewRoute(r))
}

// EvaluateRoute runs f against an existing route and verifies the result
// against the declared shape. A shape violation is a bug in a filter
// implementation and panics.
func EvaluateRoute(f Filter, rt *Route) (Tuple, *Rejection) {
	t, rej := f.Extract(rt)
	if rej != nil {
		return nil, rej
	}
	if err := f.Shape().check(t); err != nil {
		panic("filter: " + err.Error())
	}
	return t, nil
}

// funcFilter adapts a function into a Filter.
type funcFilter struct {
	shape Shape
	fn    func(rt *Route) (Tuple, *Rejection)
}

// Func builds a Filter from a plain function. The function must honor the
// given shape on success.
func Func(shape Shape, fn func(rt *Route) (Tuple, *Rejection)) Filter {
	return &funcFilter{shape: shape, fn: fn}
}

func (f *funcFilter) Extract(rt *Route) (Tuple, *Rejection) { return f.fn(rt) }
func (f *funcFilter) Shape() Shape                         { return f.shape }

type anyFilter struct{}

// Any matches every request without extracting anything.
func Any() Filter { return anyFilter{} }

func (anyFilter) Extract(*Route) (Tuple, *Rejection) { return Tuple{}, nil }
func (anyFilter) Shape() Shape                      { return Unit }
