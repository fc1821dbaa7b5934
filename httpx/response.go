package httpx

import (
	"bytes"
	"net/http"
)

// ResponseBuffer is an in-memory http.ResponseWriter for calling handlers
// whose reply is consumed by the server itself.
type ResponseBuffer struct {
	Code   int
	Body   bytes.Buffer
	header http.Header
}

// Status is the recorded status code, 200 when none was written.
func (b *ResponseBuffer) Status() int {
	if b.Code == 0 {
		return http.StatusOK
	}
	return b.Code
}

func (b *ResponseBuffer) Header() http.Header {
	if b.header == nil {
		b.header = http.Header{}
	}
	return b.header
}

func (b *ResponseBuffer) Write(p []byte) (int, error) {
	if b.Code == 0 {
		b.Code = http.StatusOK
	}
	return b.Body.Write(p)
}

func (b *ResponseBuffer) WriteHeader(code int) {
	if b.Code == 0 {
		b.Code = code
	}
}
