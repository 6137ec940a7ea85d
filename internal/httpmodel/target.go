package httpmodel

import "bytes"

// BufferTarget is a FlushTarget that captures the rendered response in
// memory. It is used by the synchronous event renderer and by tests.
type BufferTarget struct {
	StatusCode int
	Head       *Header
	Body       bytes.Buffer

	HeadCalls int
	EndCalls  int
}

// NewBufferTarget creates an empty BufferTarget.
func NewBufferTarget() *BufferTarget {
	return &BufferTarget{}
}

// WriteHead captures the response head.
func (t *BufferTarget) WriteHead(status int, header *Header) error {
	t.HeadCalls++
	t.StatusCode = status
	t.Head = header.Clone()
	return nil
}

// WriteChunk appends a body chunk.
func (t *BufferTarget) WriteChunk(p []byte) error {
	t.Body.Write(p)
	return nil
}

// End marks the response complete.
func (t *BufferTarget) End() error {
	t.EndCalls++
	return nil
}
