package dispatch

import (
	"bytes"
	"net/http"
)

// Capture is an in-memory http.ResponseWriter used by Check.
type Capture struct {
	header http.Header
	status int
	body   bytes.Buffer
}

// NewCapture returns an empty capture.
func NewCapture() *Capture {
	return &Capture{header: make(http.Header)}
}

func (c *Capture) Header() http.Header { return c.header }

func (c *Capture) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
}

func (c *Capture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(b)
}

// Status returns the captured status code.
func (c *Capture) Status() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

// Body returns the captured body.
func (c *Capture) Body() []byte { return c.body.Bytes() }
