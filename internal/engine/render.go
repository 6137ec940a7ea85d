package engine

import (
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/edgerouter/internal/observability"
	"github.com/vyrodovalexey/edgerouter/internal/util"
)

const (
	contentTypeJSON = "application/json"
	contentTypeHTML = "text/html; charset=utf-8"
)

// renderError converts a per-request failure into an error document on the
// response. If the head is already flushed the body is left alone; the
// failure is only logged.
func (e *Engine) renderError(rc *RequestContext, err error) {
	re := util.Normalize(err, !e.production)

	rc.Logger.Error("request failed",
		observability.Int("status", re.Status),
		observability.String("title", re.Title),
		observability.Error(err),
	)

	resp := rc.Response
	if resp.Ended() {
		return
	}
	if resp.HeadersFlushed() {
		// Too late to change the status line. Close out whatever was
		// streamed so far.
		_ = resp.End()
		return
	}

	resp.SetStatus(re.Status)
	if wantsHTML(rc.Request.Header.Get("Accept")) {
		resp.Header().Set("Content-Type", contentTypeHTML)
		_, _ = resp.WriteString(renderHTMLError(re))
	} else {
		resp.Header().Set("Content-Type", contentTypeJSON)
		body, merr := json.Marshal(errorDocument{
			Status: re.Status,
			Title:  re.Title,
			Detail: re.Message,
			Stack:  re.Stack,
		})
		if merr != nil {
			body = []byte(`{"title":"Internal Error"}`)
		}
		_, _ = resp.Write(body)
	}
	if eerr := resp.End(); eerr != nil {
		rc.Logger.Error("failed to finalize error response", observability.Error(eerr))
	}
}

// errorDocument is the JSON rendering of a normalized error.
type errorDocument struct {
	Status int    `json:"status"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
	Stack  string `json:"stack,omitempty"`
}

// renderHTMLError produces a minimal standalone error page.
func renderHTMLError(re *util.RenderableError) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head><title>")
	b.WriteString(html.EscapeString(fmt.Sprintf("%d %s", re.Status, re.Title)))
	b.WriteString("</title></head>\n<body>\n<h1>")
	b.WriteString(html.EscapeString(re.Title))
	b.WriteString("</h1>\n<p>")
	b.WriteString(html.EscapeString(re.Message))
	b.WriteString("</p>\n")
	if re.Stack != "" {
		b.WriteString("<pre>")
		b.WriteString(html.EscapeString(re.Stack))
		b.WriteString("</pre>\n")
	}
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

// wantsHTML reports whether the Accept header prefers an HTML rendering
// over JSON. JSON is the default when the header is absent or ambiguous.
func wantsHTML(accept string) bool {
	if accept == "" {
		return false
	}

	mediaTypes := parseAcceptHeader(accept)
	sort.SliceStable(mediaTypes, func(i, j int) bool {
		return mediaTypes[i].quality > mediaTypes[j].quality
	})

	for _, mt := range mediaTypes {
		switch {
		case mt.mediaType == "text/html" || mt.mediaType == "application/xhtml+xml":
			return true
		case mt.mediaType == "application/json" || mt.mediaType == "*/*":
			return false
		}
	}

	return false
}

// mediaType represents a parsed media type from the Accept header.
type mediaType struct {
	mediaType string
	quality   float64
}

// parseAcceptHeader parses an Accept header into media types with quality
// values. Example: "text/html, application/json;q=0.9, */*;q=0.8"
func parseAcceptHeader(header string) []mediaType {
	parts := strings.Split(header, ",")
	result := make([]mediaType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		mt := mediaType{quality: 1.0}

		segments := strings.Split(part, ";")
		mt.mediaType = strings.TrimSpace(segments[0])

		for _, segment := range segments[1:] {
			segment = strings.TrimSpace(segment)
			if strings.HasPrefix(segment, "q=") {
				if q, err := strconv.ParseFloat(strings.TrimPrefix(segment, "q="), 64); err == nil {
					mt.quality = q
				}
			}
		}

		result = append(result, mt)
	}

	return result
}
