package wire

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

// StreamingHeaderName is the inbound header that negotiates the streaming
// framing for a call.
const StreamingHeaderName = "X-Edge-Streaming"

// streamDelimiter separates the JSON header block from the raw body. Eight
// zero bytes cannot occur inside a JSON document, so the boundary is
// unambiguous. The framing is byte-stable: header block, delimiter, body.
var streamDelimiter = make([]byte, 8)

// streamHead is the JSON header block opening a framed stream.
type streamHead struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers"`
}

// StreamTarget frames a response onto an io.Writer: a JSON header block,
// the delimiter, then raw (possibly compressed) body bytes. Chunks pass
// through unbuffered; when the writer exposes http.Flusher each chunk is
// flushed before the next is accepted.
type StreamTarget struct {
	w       io.Writer
	flusher http.Flusher
}

// NewStreamTarget creates a streaming flush target over w.
func NewStreamTarget(w io.Writer) *StreamTarget {
	t := &StreamTarget{w: w}
	if f, ok := w.(http.Flusher); ok {
		t.flusher = f
	}
	return t
}

// WriteHead implements httpmodel.FlushTarget.
func (t *StreamTarget) WriteHead(status int, headers *httpmodel.Header) error {
	single, _ := headers.Flatten()
	if single == nil {
		single = map[string]string{}
	}
	block, err := json.Marshal(streamHead{StatusCode: status, Headers: single})
	if err != nil {
		return util.WrapError(err, "encode stream head")
	}
	if _, err := t.w.Write(block); err != nil {
		return err
	}
	if _, err := t.w.Write(streamDelimiter); err != nil {
		return err
	}
	t.flush()
	return nil
}

// WriteChunk implements httpmodel.FlushTarget.
func (t *StreamTarget) WriteChunk(p []byte) error {
	if _, err := t.w.Write(p); err != nil {
		return err
	}
	t.flush()
	return nil
}

// End implements httpmodel.FlushTarget.
func (t *StreamTarget) End() error {
	t.flush()
	if c, ok := t.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *StreamTarget) flush() {
	if t.flusher != nil {
		t.flusher.Flush()
	}
}

// DecodeStream splits a framed stream back into its header block and body.
// Used by the edge side of the contract and by tests.
func DecodeStream(raw []byte) (status int, headers map[string]string, body []byte, err error) {
	i := bytes.Index(raw, streamDelimiter)
	if i < 0 {
		return 0, nil, nil, util.NewConfigError("stream", "missing frame delimiter")
	}

	var head streamHead
	if err := json.Unmarshal(raw[:i], &head); err != nil {
		return 0, nil, nil, util.WrapError(err, "decode stream head")
	}

	return head.StatusCode, head.Headers, raw[i+len(streamDelimiter):], nil
}
