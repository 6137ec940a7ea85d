package httpmodel

import (
	"fmt"
	"io"
	"net/http"
)

// FlushTarget receives the rendered response. Implementations adapt the
// response to a concrete transport: a synchronous event object, a live
// socket-backed writer, or the streaming wire codec. WriteHead, WriteChunk,
// and End are invoked in that order; WriteHead and End exactly once. A
// WriteChunk that cannot be flushed immediately must block until it can,
// bounding memory growth against a slow consumer.
type FlushTarget interface {
	WriteHead(status int, header *Header) error
	WriteChunk(p []byte) error
	End() error
}

// Response is the canonical outbound response. It begins buffered: writes
// accumulate and headers flush only at End. Once streaming is enabled,
// writes flush immediately through the target callbacks. Once compression
// or streaming framing is selected it cannot be reversed for this instance.
type Response struct {
	status int
	header *Header
	target FlushTarget

	buf []byte

	streaming      bool
	headersFlushed bool
	ended          bool
	wroteHead      bool

	acceptEncoding   string
	explicitEncoding string
	encoding         string
	compressor       io.WriteCloser
}

// NewResponse creates a buffered Response delivering to target.
func NewResponse(target FlushTarget) *Response {
	return &Response{
		status: http.StatusOK,
		header: NewHeader(),
		target: target,
	}
}

// Status returns the response status code.
func (r *Response) Status() int {
	return r.status
}

// SetStatus sets the response status code. It has no effect once headers
// have begun flushing.
func (r *Response) SetStatus(code int) {
	if r.headersFlushed {
		return
	}
	r.status = code
}

// Header returns the response headers.
func (r *Response) Header() *Header {
	return r.header
}

// Streaming reports whether immediate-flush mode is enabled.
func (r *Response) Streaming() bool {
	return r.streaming
}

// HeadersFlushed reports whether the head has been delivered to the target.
func (r *Response) HeadersFlushed() bool {
	return r.headersFlushed
}

// Ended reports whether the response has been finalized.
func (r *Response) Ended() bool {
	return r.ended
}

// Encoding returns the selected content encoding, or "" before selection.
func (r *Response) Encoding() string {
	return r.encoding
}

// RequestCompression records the client's Accept-Encoding value for
// negotiation at head-flush time.
func (r *Response) RequestCompression(acceptEncoding string) {
	if r.headersFlushed {
		return
	}
	r.acceptEncoding = acceptEncoding
}

// SetCompression forces a specific content encoding, bypassing
// Accept-Encoding negotiation. The content-type and double-compression
// checks still apply at head-flush time.
func (r *Response) SetCompression(encoding string) {
	if r.headersFlushed {
		return
	}
	r.explicitEncoding = encoding
}

// EnableStreaming toggles immediate-flush mode. Chunks buffered before
// streaming was enabled are flushed through the same callback triple on the
// first streamed write or at End. Streaming cannot be disabled once the
// head has flushed.
func (r *Response) EnableStreaming(on bool) {
	if r.headersFlushed {
		return
	}
	r.streaming = on
}

// WriteHead records the response status and merges the given headers. Only
// the first call has effect; the write-head callback fires exactly once. In
// streaming mode the head is delivered immediately.
func (r *Response) WriteHead(status int, headers *Header) error {
	if r.wroteHead || r.headersFlushed {
		return nil
	}
	r.wroteHead = true
	r.status = status

	if headers != nil {
		for _, name := range headers.Names() {
			r.header.Del(name)
		}
		headers.Each(func(name, value string) {
			r.header.Add(name, value)
		})
	}

	if r.streaming {
		return r.flushHead()
	}
	return nil
}

// Write appends a body chunk. Buffered responses accumulate; streaming
// responses flush the chunk immediately, transformed by the selected
// compression.
func (r *Response) Write(p []byte) (int, error) {
	if r.ended {
		return 0, fmt.Errorf("write to ended response")
	}

	if !r.streaming {
		r.buf = append(r.buf, p...)
		return len(p), nil
	}

	if err := r.flushHead(); err != nil {
		return 0, err
	}
	if err := r.flushBuffered(); err != nil {
		return 0, err
	}
	if err := r.writeChunk(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// WriteString appends a string body chunk.
func (r *Response) WriteString(s string) (int, error) {
	return r.Write([]byte(s))
}

// End finalizes the response: the head is flushed if it has not been, any
// buffered chunks are delivered, the compression stream is closed, and the
// end callback fires. A second End is a no-op.
func (r *Response) End() error {
	if r.ended {
		return nil
	}
	r.ended = true

	if err := r.flushHead(); err != nil {
		return err
	}
	if err := r.flushBuffered(); err != nil {
		return err
	}
	if r.compressor != nil {
		if err := r.compressor.Close(); err != nil {
			return fmt.Errorf("failed to finalize compression stream: %w", err)
		}
		r.compressor = nil
	}
	return r.target.End()
}

// flushHead selects the framing and compression for this response and
// delivers the head exactly once.
func (r *Response) flushHead() error {
	if r.headersFlushed {
		return nil
	}

	r.selectEncoding()

	if r.encoding != EncodingIdentity {
		r.header.Set("Content-Encoding", r.encoding)
		r.header.Add("Vary", "Accept-Encoding")
		// A precomputed length is incompatible with the transformed body.
		r.header.Del("Content-Length")
	}

	if r.streaming {
		r.header.Set("Transfer-Encoding", "chunked")
		r.header.Del("Content-Length")
	}

	r.headersFlushed = true

	if err := r.target.WriteHead(r.status, r.header); err != nil {
		return err
	}

	if r.encoding != EncodingIdentity {
		cw, err := newCompressor(r.encoding, chunkWriter{target: r.target})
		if err != nil {
			return err
		}
		r.compressor = cw
	}
	return nil
}

// selectEncoding resolves the content encoding once. Negotiation is skipped
// when the content type is not text-like or the body already carries a
// content encoding.
func (r *Response) selectEncoding() {
	if r.encoding != "" {
		return
	}

	if r.header.Has("Content-Encoding") || !IsCompressibleContentType(r.header.Get("Content-Type")) {
		r.encoding = EncodingIdentity
		return
	}

	switch {
	case r.explicitEncoding != "":
		r.encoding = r.explicitEncoding
	case r.acceptEncoding != "":
		r.encoding = NegotiateEncoding(r.acceptEncoding)
	default:
		r.encoding = EncodingIdentity
	}
}

// flushBuffered delivers chunks accumulated before streaming was enabled.
func (r *Response) flushBuffered() error {
	if len(r.buf) == 0 {
		return nil
	}
	buf := r.buf
	r.buf = nil
	return r.writeChunk(buf)
}

// writeChunk delivers one chunk through the compression transform when one
// is active.
func (r *Response) writeChunk(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if r.compressor != nil {
		_, err := r.compressor.Write(p)
		return err
	}
	return r.target.WriteChunk(p)
}

// chunkWriter adapts a FlushTarget to io.Writer for the compressor.
type chunkWriter struct {
	target FlushTarget
}

func (w chunkWriter) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := w.target.WriteChunk(p); err != nil {
		return 0, err
	}
	return len(p), nil
}
