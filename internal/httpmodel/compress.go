package httpmodel

import (
	"compress/flate"
	"compress/gzip"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/andybalholm/brotli"
)

// Supported content encodings, in preference order.
const (
	EncodingBrotli   = "br"
	EncodingGzip     = "gzip"
	EncodingDeflate  = "deflate"
	EncodingIdentity = "identity"
)

// encodingPreference is the selection order when the client accepts more
// than one encoding.
var encodingPreference = []string{EncodingBrotli, EncodingGzip, EncodingDeflate}

// NegotiateEncoding selects a content encoding from an Accept-Encoding
// header value, preferring brotli over gzip over deflate. It returns
// EncodingIdentity when the client accepts none of the supported encodings.
func NegotiateEncoding(acceptEncoding string) string {
	if acceptEncoding == "" {
		return EncodingIdentity
	}

	accepted := make(map[string]float64)
	for _, part := range strings.Split(acceptEncoding, ",") {
		name, q := parseEncodingToken(strings.TrimSpace(part))
		if name == "" {
			continue
		}
		accepted[name] = q
	}

	wildcard, hasWildcard := accepted["*"]

	for _, enc := range encodingPreference {
		q, ok := accepted[enc]
		if !ok && hasWildcard {
			q, ok = wildcard, true
		}
		if ok && q > 0 {
			return enc
		}
	}

	return EncodingIdentity
}

// parseEncodingToken splits an Accept-Encoding token into name and quality.
// An absent quality value defaults to 1.0.
func parseEncodingToken(s string) (name string, quality float64) {
	name, params, found := strings.Cut(s, ";")
	name = strings.ToLower(strings.TrimSpace(name))
	if !found {
		return name, 1.0
	}

	quality = 1.0
	params = strings.TrimSpace(params)
	if key, val, ok := strings.Cut(params, "="); ok && strings.TrimSpace(key) == "q" {
		if q, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			quality = q
		}
	}
	return name, quality
}

// compressiblePrefixes lists content type prefixes eligible for compression.
var compressiblePrefixes = []string{
	"text/",
	"application/json",
	"application/javascript",
	"application/x-javascript",
	"application/xml",
	"application/xhtml+xml",
	"application/rss+xml",
	"application/atom+xml",
	"application/manifest+json",
	"image/svg+xml",
}

// IsCompressibleContentType reports whether the content type is text-like
// and therefore eligible for compression. Binary, image, video, and audio
// types are excluded. The empty content type is treated as compressible
// since the response defaults to HTML.
func IsCompressibleContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return true
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}

	for _, prefix := range compressiblePrefixes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}

	return strings.HasSuffix(ct, "+json") || strings.HasSuffix(ct, "+xml")
}

// newCompressor creates a streaming compressor for the given encoding
// writing transformed bytes to w.
func newCompressor(encoding string, w io.Writer) (io.WriteCloser, error) {
	switch encoding {
	case EncodingBrotli:
		return brotli.NewWriter(w), nil
	case EncodingGzip:
		return gzip.NewWriter(w), nil
	case EncodingDeflate:
		zw, err := flate.NewWriter(w, flate.DefaultCompression)
		if err != nil {
			return nil, fmt.Errorf("failed to create deflate writer: %w", err)
		}
		return zw, nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
