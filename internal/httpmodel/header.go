package httpmodel

import (
	"strings"
)

// neverMergeHeaders lists header names whose repeated values must never be
// comma-joined. Keyed by normalized (lower-cased) name.
var neverMergeHeaders = map[string]bool{
	"set-cookie": true,
}

// NeverMerge reports whether repeated values of the named header must stay
// array-valued instead of being comma-joined.
func NeverMerge(name string) bool {
	return neverMergeHeaders[strings.ToLower(name)]
}

// headerEntry holds one header name with its values. The name keeps the
// casing of the first write for rendering.
type headerEntry struct {
	name   string
	values []string
}

// Header is an ordered, case-insensitive multi-value header map. Reads are
// always case-insensitive; the casing of the first write is preserved on
// render. Repeated writes comma-join on read except for never-merge headers,
// which stay array-valued.
type Header struct {
	entries []*headerEntry
	index   map[string]*headerEntry
}

// NewHeader creates an empty Header.
func NewHeader() *Header {
	return &Header{index: make(map[string]*headerEntry)}
}

// normalize lower-cases a header name for lookup.
func normalize(name string) string {
	return strings.ToLower(name)
}

// Set replaces all values of the named header with value. The stored casing
// is that of the first write for the name.
func (h *Header) Set(name, value string) {
	key := normalize(name)
	if e, ok := h.index[key]; ok {
		e.values = []string{value}
		return
	}
	h.append(key, name, value)
}

// Add appends value to the named header.
func (h *Header) Add(name, value string) {
	key := normalize(name)
	if e, ok := h.index[key]; ok {
		e.values = append(e.values, value)
		return
	}
	h.append(key, name, value)
}

// SetDefault sets the header only when it is not already present.
func (h *Header) SetDefault(name, value string) {
	key := normalize(name)
	if _, ok := h.index[key]; ok {
		return
	}
	h.append(key, name, value)
}

// AddDefault adds the header only when it is not already present.
func (h *Header) AddDefault(name, value string) {
	h.SetDefault(name, value)
}

func (h *Header) append(key, name, value string) {
	e := &headerEntry{name: name, values: []string{value}}
	h.entries = append(h.entries, e)
	h.index[key] = e
}

// Get returns the value of the named header. Repeated values are
// comma-joined unless the header is on the never-merge list, in which case
// the first value is returned. Returns "" when absent.
func (h *Header) Get(name string) string {
	key := normalize(name)
	e, ok := h.index[key]
	if !ok {
		return ""
	}
	if neverMergeHeaders[key] {
		return e.values[0]
	}
	return strings.Join(e.values, ",")
}

// Values returns all values of the named header, or nil when absent.
func (h *Header) Values(name string) []string {
	e, ok := h.index[normalize(name)]
	if !ok {
		return nil
	}
	out := make([]string, len(e.values))
	copy(out, e.values)
	return out
}

// Has reports whether the named header is present.
func (h *Header) Has(name string) bool {
	_, ok := h.index[normalize(name)]
	return ok
}

// Del removes the named header.
func (h *Header) Del(name string) {
	key := normalize(name)
	if _, ok := h.index[key]; !ok {
		return
	}
	delete(h.index, key)
	for i, e := range h.entries {
		if normalize(e.name) == key {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			break
		}
	}
}

// Names returns the header names in insertion order, each with the casing of
// its first write.
func (h *Header) Names() []string {
	names := make([]string, len(h.entries))
	for i, e := range h.entries {
		names[i] = e.name
	}
	return names
}

// Len returns the number of distinct header names.
func (h *Header) Len() int {
	return len(h.entries)
}

// Clone returns a deep copy of the header map.
func (h *Header) Clone() *Header {
	c := NewHeader()
	for _, e := range h.entries {
		values := make([]string, len(e.values))
		copy(values, e.values)
		ce := &headerEntry{name: e.name, values: values}
		c.entries = append(c.entries, ce)
		c.index[normalize(e.name)] = ce
	}
	return c
}

// Flatten renders the headers into a single-value map (repeated values
// comma-joined) plus a multi-value map holding only never-merge headers.
// The multi map is nil when no never-merge header is present.
func (h *Header) Flatten() (single map[string]string, multi map[string][]string) {
	single = make(map[string]string, len(h.entries))
	for _, e := range h.entries {
		key := normalize(e.name)
		if neverMergeHeaders[key] {
			if multi == nil {
				multi = make(map[string][]string)
			}
			values := make([]string, len(e.values))
			copy(values, e.values)
			multi[e.name] = values
			continue
		}
		single[e.name] = strings.Join(e.values, ",")
	}
	return single, multi
}

// Each calls fn for every name/value pair in insertion order.
func (h *Header) Each(fn func(name, value string)) {
	for _, e := range h.entries {
		for _, v := range e.values {
			fn(e.name, v)
		}
	}
}
