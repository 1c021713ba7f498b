package filter

import (
	"fmt"
	"reflect"
)

type and struct {
	a, b  Filter
	shape Shape
}

// And matches when a and then b match the same request. The tuple is a's
// elements followed by b's. When a rejects, b is not evaluated and a's
// rejection is returned unchanged; otherwise b's rejection is.
func And(a, b Filter) Filter {
	return &and{a: a, b: b, shape: a.Shape().Concat(b.Shape())}
}

// AndAll folds filters left to right with And.
func AndAll(first Filter, rest ...Filter) Filter {
	f := first
	for _, next := range rest {
		f = And(f, next)
	}
	return f
}

func (f *and) Shape() Shape { return f.shape }

func (f *and) Extract(rt *Route) (Tuple, *Rejection) {
	ta, rej := f.a.Extract(rt)
	if rej != nil {
		return nil, rej
	}
	tb, rej := f.b.Extract(rt)
	if rej != nil {
		return nil, rej
	}
	out := make(Tuple, 0, len(ta)+len(tb))
	out = append(out, ta...)
	return append(out, tb...), nil
}

type or struct {
	a, b Filter
}

// Or matches a, or b when a rejects. Both sides must have the same shape.
// b is never evaluated when a matches. When both reject, the rejections
// are merged with Combine.
func Or(a, b Filter) Filter {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("filter: Or needs equal shapes, got %s and %s", a.Shape(), b.Shape()))
	}
	return &or{a: a, b: b}
}

// OrAll folds filters left to right with Or.
func OrAll(first Filter, rest ...Filter) Filter {
	f := first
	for _, next := range rest {
		f = Or(f, next)
	}
	return f
}

func (f *or) Shape() Shape { return f.a.Shape() }

func (f *or) Extract(rt *Route) (Tuple, *Rejection) {
	idx := rt.cursor()
	t, ra := f.a.Extract(rt)
	if ra == nil {
		return t, nil
	}
	rt.reset(idx)
	t, rb := f.b.Extract(rt)
	if rb == nil {
		return t, nil
	}
	rt.reset(idx)
	return nil, Combine(ra, rb)
}

type mapped struct {
	f     Filter
	shape Shape
	fn    func(Tuple) any
}

func (m *mapped) Shape() Shape { return m.shape }

func (m *mapped) Extract(rt *Route) (Tuple, *Rejection) {
	t, rej := m.f.Extract(rt)
	if rej != nil {
		return nil, rej
	}
	return Tuple{m.fn(t)}, nil
}

func newMapped[V any](f Filter, fn func(Tuple) any) Filter {
	return &mapped{f: f, shape: ShapeOf[V](), fn: fn}
}

// mustTake panics unless f's shape can be passed to a function taking params.
func mustTake(op string, f Filter, params ...reflect.Type) {
	s := f.Shape()
	if len(s) != len(params) {
		panic(fmt.Sprintf("filter: %s needs arity %d, got shape %s", op, len(params), s))
	}
	for i := range s {
		if !s[i].AssignableTo(params[i]) {
			panic(fmt.Sprintf("filter: %s parameter %d is %s, shape has %s", op, i, params[i], s[i]))
		}
	}
}

// MapTuple replaces f's tuple with the single value fn returns.
func MapTuple[V any](f Filter, fn func(Tuple) V) Filter {
	return newMapped[V](f, func(t Tuple) any { return fn(t) })
}

// Map0 maps a filter of arity 0.
func Map0[V any](f Filter, fn func() V) Filter {
	mustTake("Map0", f)
	return newMapped[V](f, func(Tuple) any { return fn() })
}

// Map1 maps a filter of arity 1.
func Map1[A, V any](f Filter, fn func(A) V) Filter {
	mustTake("Map1", f, reflect.TypeFor[A]())
	return newMapped[V](f, func(t Tuple) any { return fn(Value[A](t, 0)) })
}

// Map2 maps a filter of arity 2.
func Map2[A, B, V any](f Filter, fn func(A, B) V) Filter {
	mustTake("Map2", f, reflect.TypeFor[A](), reflect.TypeFor[B]())
	return newMapped[V](f, func(t Tuple) any { return fn(Value[A](t, 0), Value[B](t, 1)) })
}

// Map3 maps a filter of arity 3.
func Map3[A, B, C, V any](f Filter, fn func(A, B, C) V) Filter {
	mustTake("Map3", f, reflect.TypeFor[A](), reflect.TypeFor[B](), reflect.TypeFor[C]())
	return newMapped[V](f, func(t Tuple) any { return fn(Value[A](t, 0), Value[B](t, 1), Value[C](t, 2)) })
}

type discard struct {
	f Filter
}

// Discard matches like f but extracts nothing.
func Discard(f Filter) Filter { return &discard{f: f} }

func (d *discard) Shape() Shape { return Unit }

func (d *discard) Extract(rt *Route) (Tuple, *Rejection) {
	if _, rej := d.f.Extract(rt); rej != nil {
		return nil, rej
	}
	return Tuple{}, nil
}

// BoxedFilter hides the concrete type of a composed filter behind one
// named type, so routes of any construction can share a slice or a
// function signature. It costs one extra indirect call per evaluation
// and never changes what the inner filter matches or rejects.
type BoxedFilter struct {
	inner Filter
	shape Shape
}

// Boxed wraps f. Boxing a BoxedFilter returns it unchanged.
func Boxed(f Filter) *BoxedFilter {
	if b, ok := f.(*BoxedFilter); ok {
		return b
	}
	return &BoxedFilter{inner: f, shape: f.Shape()}
}

func (b *BoxedFilter) Shape() Shape { return b.shape }

func (b *BoxedFilter) Extract(rt *Route) (Tuple, *Rejection) {
	return b.inner.Extract(rt)
}

// ToReply maps a filter extracting one value to shape (Reply) using
// AsReply. Routes that extract different value types can then be joined
// with Or.
func ToReply(f Filter) Filter {
	if f.Shape().Arity() != 1 {
		panic(fmt.Sprintf("filter: ToReply needs arity 1, got shape %s", f.Shape()))
	}
	if f.Shape()[0] == reflect.TypeFor[Reply]() {
		return f
	}
	return newMapped[Reply](f, func(t Tuple) any { return AsReply(t[0]) })
}
