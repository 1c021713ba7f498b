package filter

import (
	"fmt"
	"strings"
)

type header[T any] struct {
	name  string
	parse func(string) (T, error)
}

// Header extracts the named header decoded as T. A missing header is
// rejected with HeaderMissing, an undecodable one with HeaderMismatch.
func Header[T any](name string) Filter {
	return &header[T]{name: name, parse: mustParser[T]("Header")}
}

func (h *header[T]) Shape() Shape { return ShapeOf[T]() }

func (h *header[T]) Extract(rt *Route) (Tuple, *Rejection) {
	raw, ok := rt.Header(h.name)
	if !ok {
		return nil, HeaderMissing(h.name)
	}
	v, err := h.parse(raw)
	if err != nil {
		return nil, HeaderMismatch(h.name, err)
	}
	return Tuple{v}, nil
}

type optionalHeader[T any] struct {
	name  string
	parse func(string) (T, error)
}

// HeaderOptional extracts the named header decoded as T, or a nil *T
// when the header is absent. A present but undecodable header is still
// rejected with HeaderMismatch.
func HeaderOptional[T any](name string) Filter {
	return &optionalHeader[T]{name: name, parse: mustParser[T]("HeaderOptional")}
}

func (h *optionalHeader[T]) Shape() Shape { return ShapeOf[*T]() }

func (h *optionalHeader[T]) Extract(rt *Route) (Tuple, *Rejection) {
	raw, ok := rt.Header(h.name)
	if !ok {
		return Tuple{(*T)(nil)}, nil
	}
	v, err := h.parse(raw)
	if err != nil {
		return nil, HeaderMismatch(h.name, err)
	}
	return Tuple{&v}, nil
}

type exactHeader struct {
	name, value string
	foldCase    bool
}

// HeaderExact matches when the named header is exactly value.
func HeaderExact(name, value string) Filter {
	return &exactHeader{name: name, value: value}
}

// HeaderExactIgnoreCase matches when the named header equals value
// ignoring ASCII case.
func HeaderExactIgnoreCase(name, value string) Filter {
	return &exactHeader{name: name, value: value, foldCase: true}
}

func (h *exactHeader) Shape() Shape { return Unit }

func (h *exactHeader) Extract(rt *Route) (Tuple, *Rejection) {
	raw, ok := rt.Header(h.name)
	if !ok {
		return nil, HeaderMissing(h.name)
	}
	if raw == h.value || (h.foldCase && strings.EqualFold(raw, h.value)) {
		return Tuple{}, nil
	}
	return nil, HeaderMismatch(h.name, fmt.Errorf("want %q, got %q", h.value, raw))
}
