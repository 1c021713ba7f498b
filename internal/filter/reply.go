package filter

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
)

// Reply writes a response. Terminal filters extract a Reply, or a value
// AsReply can turn into one.
type Reply interface {
	WriteReply(w http.ResponseWriter, r *http.Request)
}

// ReplyFunc adapts a function into a Reply.
type ReplyFunc func(w http.ResponseWriter, r *http.Request)

func (f ReplyFunc) WriteReply(w http.ResponseWriter, r *http.Request) { f(w, r) }

type bodyReply struct {
	status      int
	contentType string
	body        []byte
}

func (b *bodyReply) WriteReply(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", b.contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(b.body)))
	w.WriteHeader(b.status)
	w.Write(b.body)
}

// Text replies 200 with a text/plain body.
func Text(s string) Reply {
	return &bodyReply{status: http.StatusOK, contentType: "text/plain; charset=utf-8", body: []byte(s)}
}

// Bytes replies 200 with the given content type and body.
func Bytes(contentType string, b []byte) Reply {
	return &bodyReply{status: http.StatusOK, contentType: contentType, body: b}
}

// JSON replies 200 with v encoded as JSON. An encoding failure replies 500.
func JSON(v any) Reply {
	data, err := json.Marshal(v)
	if err != nil {
		return &bodyReply{
			status:      http.StatusInternalServerError,
			contentType: "text/plain; charset=utf-8",
			body:        []byte(fmt.Sprintf("encoding reply: %v", err)),
		}
	}
	return &bodyReply{status: http.StatusOK, contentType: "application/json", body: data}
}

// WithStatus replaces the 200 status of reply. Any other status the reply
// chooses, such as 206 or 304 from a FileReply, is kept.
func WithStatus(status int, reply Reply) Reply {
	return ReplyFunc(func(w http.ResponseWriter, r *http.Request) {
		reply.WriteReply(&statusOverride{ResponseWriter: w, status: status}, r)
	})
}

// WithHeader sets a response header before reply is written.
func WithHeader(name, value string, reply Reply) Reply {
	return ReplyFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(name, value)
		reply.WriteReply(w, r)
	})
}

type statusOverride struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusOverride) WriteHeader(code int) {
	if s.wrote {
		return
	}
	s.wrote = true
	if code == http.StatusOK {
		code = s.status
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusOverride) Write(b []byte) (int, error) {
	s.WriteHeader(http.StatusOK)
	return s.ResponseWriter.Write(b)
}

func (s *statusOverride) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// AsReply turns an extracted value into a Reply. Replies pass through,
// strings and fmt.Stringers become text, byte slices become an octet
// stream, nil becomes an empty 200, and anything else is encoded as JSON.
func AsReply(v any) Reply {
	switch v := v.(type) {
	case Reply:
		return v
	case nil:
		return &bodyReply{status: http.StatusOK, contentType: "text/plain; charset=utf-8"}
	case string:
		return Text(v)
	case []byte:
		return Bytes("application/octet-stream", v)
	case fmt.Stringer:
		return Text(v.String())
	default:
		return JSON(v)
	}
}
