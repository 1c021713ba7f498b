package filter

import "errors"

var errQueryMissing = errors.New("missing query parameter")

type query[T any] struct {
	key   string
	parse func(string) (T, error)
}

// Query extracts the first value of a query parameter decoded as T.
// Missing and undecodable values are both ParseFailure on the key.
func Query[T any](key string) Filter {
	return &query[T]{key: key, parse: mustParser[T]("Query")}
}

func (q *query[T]) Shape() Shape { return ShapeOf[T]() }

func (q *query[T]) Extract(rt *Route) (Tuple, *Rejection) {
	vals, ok := rt.Query()[q.key]
	if !ok || len(vals) == 0 {
		return nil, ParseFailure(q.key, errQueryMissing)
	}
	v, err := q.parse(vals[0])
	if err != nil {
		return nil, ParseFailure(q.key, err)
	}
	return Tuple{v}, nil
}

type rawQuery struct{}

// RawQuery extracts the undecoded query string. It matches every request.
func RawQuery() Filter { return rawQuery{} }

func (rawQuery) Shape() Shape { return ShapeOf[string]() }

func (rawQuery) Extract(rt *Route) (Tuple, *Rejection) {
	return Tuple{rt.Request().URL.RawQuery}, nil
}
