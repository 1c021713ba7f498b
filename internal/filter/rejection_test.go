package filter

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCombine(t *testing.T) {
	notFound := NotFound()
	notFound2 := NotFound()
	method := MethodMismatch("POST", "GET")
	header := HeaderMissing("accept")
	parse := ParseFailure("page", errors.New("bad"))

	tests := []struct {
		name string
		a, b *Rejection
		want *Rejection
	}{
		{"nil left", nil, header, header},
		{"nil right", header, nil, header},
		{"method beats not found", method, notFound, method},
		{"method beats not found from the right", notFound, method, method},
		{"header beats method", method, header, header},
		{"header beats method from the left", header, method, header},
		{"tie goes right", notFound, notFound2, notFound2},
		{"tie between specific kinds goes right", header, parse, parse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Same(t, tt.want, Combine(tt.a, tt.b))
		})
	}
}

func TestKindStatus(t *testing.T) {
	tests := map[Kind]int{
		KindNotFound:        http.StatusNotFound,
		KindMethodMismatch:  http.StatusMethodNotAllowed,
		KindHeaderMissing:   http.StatusBadRequest,
		KindHeaderMismatch:  http.StatusBadRequest,
		KindParseFailure:    http.StatusBadRequest,
		KindPayloadTooLarge: http.StatusRequestEntityTooLarge,
		KindForbidden:       http.StatusForbidden,
		KindTooManyRequests: http.StatusTooManyRequests,
	}
	for kind, status := range tests {
		assert.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestRejection_StatusOverride(t *testing.T) {
	rej := Forbidden("r", "no")
	over := rej.WithStatus(http.StatusInternalServerError)

	assert.Equal(t, http.StatusForbidden, rej.StatusCode())
	assert.Equal(t, http.StatusInternalServerError, over.StatusCode())
	assert.Equal(t, KindForbidden, over.Kind)
}

func TestRejection_Error(t *testing.T) {
	cause := errors.New("invalid syntax")
	rej := HeaderMismatch("accept", cause)

	assert.Equal(t, `header_mismatch "accept": invalid syntax`, rej.Error())
	assert.ErrorIs(t, rej, cause)
	assert.Equal(t, "not_found", NotFound().Error())
	assert.Equal(t, "method_mismatch: want POST, got GET", MethodMismatch("POST", "GET").Error())
	assert.Equal(t, "kind(99)", Kind(99).String())
}
