package filter

import (
	"fmt"
	"strings"
)

type pathSegment struct {
	segment string
}

// Path matches when the next unmatched path segment equals segment, and
// consumes it. The segment must be non-empty and contain no slash; use
// Prefix for several segments.
func Path(segment string) Filter {
	if segment == "" || strings.Contains(segment, "/") {
		panic(fmt.Sprintf("filter: Path segment %q must be non-empty and contain no '/'", segment))
	}
	return &pathSegment{segment: segment}
}

func (p *pathSegment) Shape() Shape { return Unit }

func (p *pathSegment) Extract(rt *Route) (Tuple, *Rejection) {
	seg, ok := rt.Peek()
	if !ok || seg != p.segment {
		return nil, NotFound()
	}
	rt.advance(1)
	return Tuple{}, nil
}

// Prefix matches every segment of a slash separated path in order. The
// root path "/" matches any request without consuming anything.
func Prefix(path string) Filter {
	var segs []Filter
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segs = append(segs, Path(s))
		}
	}
	if len(segs) == 0 {
		return Any()
	}
	return AndAll(segs[0], segs[1:]...)
}

type param[T any] struct {
	parse func(string) (T, error)
}

// Param consumes the next path segment decoded as T. A missing or
// undecodable segment is NotFound: it is another route's path.
func Param[T any]() Filter {
	return &param[T]{parse: mustParser[T]("Param")}
}

func (p *param[T]) Shape() Shape { return ShapeOf[T]() }

func (p *param[T]) Extract(rt *Route) (Tuple, *Rejection) {
	seg, ok := rt.Peek()
	if !ok {
		return nil, NotFound()
	}
	v, err := p.parse(seg)
	if err != nil {
		rej := NotFound()
		rej.Cause = err
		return nil, rej
	}
	rt.advance(1)
	return Tuple{v}, nil
}

type pathEnd struct{}

// PathEnd matches when every path segment has been consumed.
func PathEnd() Filter { return pathEnd{} }

func (pathEnd) Shape() Shape { return Unit }

func (pathEnd) Extract(rt *Route) (Tuple, *Rejection) {
	if len(rt.Remaining()) > 0 {
		return nil, NotFound()
	}
	return Tuple{}, nil
}

type tail struct{}

// Tail consumes all remaining segments and extracts them joined by "/".
func Tail() Filter { return tail{} }

func (tail) Shape() Shape { return ShapeOf[string]() }

func (tail) Extract(rt *Route) (Tuple, *Rejection) {
	rest := rt.Remaining()
	rt.advance(len(rest))
	return Tuple{strings.Join(rest, "/")}, nil
}
