package wire

import (
	"bytes"
	"compress/gzip"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vyrodovalexey/edgerouter/internal/httpmodel"
)

func TestStreamTargetFraming(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	target := NewStreamTarget(&buf)

	headers := httpmodel.NewHeader()
	headers.Set("Content-Type", "text/plain")
	require.NoError(t, target.WriteHead(200, headers))
	require.NoError(t, target.WriteChunk([]byte("hello ")))
	require.NoError(t, target.WriteChunk([]byte("stream")))
	require.NoError(t, target.End())

	status, decoded, body, err := DecodeStream(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "text/plain", decoded["Content-Type"])
	assert.Equal(t, "hello stream", string(body))
}

func TestStreamDelimiterNeverInJSONBlock(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	target := NewStreamTarget(&buf)

	headers := httpmodel.NewHeader()
	headers.Set("X-Weird", "value with \x01 control bytes")
	require.NoError(t, target.WriteHead(200, headers))

	// The delimiter must be the first run of eight zero bytes.
	raw := buf.Bytes()
	idx := bytes.Index(raw, make([]byte, 8))
	require.GreaterOrEqual(t, idx, 0)
	assert.NotContains(t, string(raw[:idx]), "\x00")
}

func TestStreamTargetWithResponseCompression(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	resp := httpmodel.NewResponse(NewStreamTarget(&buf))
	resp.EnableStreaming(true)
	resp.Header().Set("Content-Type", "text/plain")
	resp.RequestCompression("gzip")

	_, err := resp.WriteString("streamed and compressed")
	require.NoError(t, err)
	require.NoError(t, resp.End())

	status, headers, body, err := DecodeStream(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 200, status)
	assert.Equal(t, "gzip", headers["Content-Encoding"])

	zr, err := gzip.NewReader(bytes.NewReader(body))
	require.NoError(t, err)
	decoded, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, "streamed and compressed", string(decoded))
}

func TestDecodeStreamMissingDelimiter(t *testing.T) {
	t.Parallel()

	_, _, _, err := DecodeStream([]byte(`{"statusCode":200}`))
	assert.Error(t, err)
}
