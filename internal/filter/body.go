package filter

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

var (
	errInvalidJSON  = errors.New("body is not valid JSON")
	errFieldMissing = errors.New("field not present")
)

type body struct {
	limit int64
}

// Body extracts the request body as []byte, reading at most limit bytes.
// A non-positive limit means DefaultBodyLimit.
func Body(limit int64) Filter {
	if limit <= 0 {
		limit = DefaultBodyLimit
	}
	return &body{limit: limit}
}

func (b *body) Shape() Shape { return ShapeOf[[]byte]() }

func (b *body) Extract(rt *Route) (Tuple, *Rejection) {
	data, rej := readBody(rt, b.limit)
	if rej != nil {
		return nil, rej
	}
	return Tuple{data}, nil
}

func readBody(rt *Route, limit int64) ([]byte, *Rejection) {
	data, err := rt.Body(limit)
	switch {
	case errors.Is(err, errBodyTooLarge):
		return nil, PayloadTooLarge(limit)
	case err != nil:
		return nil, ParseFailure("body", err)
	}
	return data, nil
}

type jsonField[T any] struct {
	path string
}

// JSONField extracts one field of a JSON request body, addressed by a
// gjson path such as "user.name" or "items.0.id", decoded into T.
// An invalid body or a missing field is a ParseFailure on the path.
func JSONField[T any](path string) Filter {
	return &jsonField[T]{path: path}
}

func (j *jsonField[T]) Shape() Shape { return ShapeOf[T]() }

func (j *jsonField[T]) Extract(rt *Route) (Tuple, *Rejection) {
	data, rej := readBody(rt, DefaultBodyLimit)
	if rej != nil {
		return nil, rej
	}
	if !gjson.ValidBytes(data) {
		return nil, ParseFailure(j.path, errInvalidJSON)
	}
	res := gjson.GetBytes(data, j.path)
	if !res.Exists() {
		return nil, ParseFailure(j.path, errFieldMissing)
	}
	var v T
	if err := json.Unmarshal([]byte(res.Raw), &v); err != nil {
		return nil, ParseFailure(j.path, fmt.Errorf("decoding field: %w", err))
	}
	return Tuple{v}, nil
}
