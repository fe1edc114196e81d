package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BodySource produces fresh readers for a request body so the transport can
// replay it on redirects.
type BodySource interface {
	NewReader() (io.ReadCloser, error)
	ContentLength() (int64, bool)
	ContentType() string
}

// NewBodySource wraps a call body. Raw bytes and strings are sent as-is;
// any other non-nil value is encoded as JSON.
func NewBodySource(body any) (BodySource, error) {
	switch v := body.(type) {
	case nil:
		return emptyBodySource{}, nil
	case []byte:
		return &inlineBodySource{data: v}, nil
	case string:
		return &inlineBodySource{data: []byte(v)}, nil
	case json.RawMessage:
		return &inlineBodySource{data: v, contentType: "application/json"}, nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode json body: %w", err)
		}
		return &inlineBodySource{data: data, contentType: "application/json"}, nil
	}
}

type inlineBodySource struct {
	data        []byte
	contentType string
}

func (s *inlineBodySource) NewReader() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.data)), nil
}

func (s *inlineBodySource) ContentLength() (int64, bool) {
	return int64(len(s.data)), true
}

func (s *inlineBodySource) ContentType() string {
	return s.contentType
}

type emptyBodySource struct{}

func (emptyBodySource) NewReader() (io.ReadCloser, error) {
	return http.NoBody, nil
}

func (emptyBodySource) ContentLength() (int64, bool) {
	return 0, true
}

func (emptyBodySource) ContentType() string {
	return ""
}
