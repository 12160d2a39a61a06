package transport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/dmitrijs2005/shiftdesk/internal/common"
)

// Request describes one call issued through the transport.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header

	// Body is sent as is when it is []byte, io.Reader or *Multipart and
	// JSON-encoded otherwise.
	Body any

	// SkipErrorToast suppresses the default user-facing notice while still
	// returning the classified error.
	SkipErrorToast bool

	// Binary marks a blob download: the pipeline is skipped on success and
	// failures are recovered by parsing the body as JSON.
	Binary bool

	retried bool
	refresh bool

	payload     []byte
	contentType string
	encoded     bool
}

// Multipart is a pre-encoded multipart/form-data body.
type Multipart struct {
	Body        []byte
	ContentType string
}

// NewMultipart encodes fields and files into a multipart body.
func NewMultipart(fields map[string]string, files map[string][]byte) (*Multipart, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("multipart field %s: %w", k, err)
		}
	}
	for name, data := range files {
		fw, err := w.CreateFormFile(name, name)
		if err != nil {
			return nil, fmt.Errorf("multipart file %s: %w", name, err)
		}
		if _, err := fw.Write(data); err != nil {
			return nil, fmt.Errorf("multipart file %s: %w", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &Multipart{Body: buf.Bytes(), ContentType: w.FormDataContentType()}, nil
}

// clone returns a shallow copy safe to mark as retried.
func (r *Request) clone() *Request {
	c := *r
	if r.Header != nil {
		c.Header = r.Header.Clone()
	}
	return &c
}

// encode materialises the body once so replays send identical bytes.
func (r *Request) encode() error {
	if r.encoded {
		return nil
	}
	r.encoded = true

	switch b := r.Body.(type) {
	case nil:
	case []byte:
		r.payload = b
	case string:
		r.payload = []byte(b)
	case io.Reader:
		data, err := io.ReadAll(b)
		if err != nil {
			return fmt.Errorf("read request body: %w", err)
		}
		r.payload = data
	case *Multipart:
		r.payload = b.Body
		r.contentType = b.ContentType
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		r.payload = data
		r.contentType = common.JSONContentType
	}
	return nil
}

// Response is a successful result: the status, headers and the body after
// the response pipeline.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
