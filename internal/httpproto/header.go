package httpproto

import "strings"

// HeaderField preserves one header line exactly as it arrived, so the
// original wire order is available for logging even though lookups are
// case-insensitive and last-value-wins.
type HeaderField struct {
	Name  string
	Value string
}

// Header is a request or response header collection. Lookup is
// case-insensitive and last-value-wins on duplicates; the original,
// ordered field list is always available via Fields() for logging or
// serialization.
//
// Storage is a plain ordered slice plus a case-insensitive lookup map,
// favoring straightforward code over zero-allocation tricks since this
// server has no allocation budget to hit.
type Header struct {
	fields []HeaderField
	index  map[string]string // lowercased name -> last value
}

// NewHeader returns an empty Header ready for use.
func NewHeader() Header {
	return Header{index: make(map[string]string, 8)}
}

// Add appends name/value to the ordered list and updates the lookup index
// (last value wins for Get).
func (h *Header) Add(name, value string) {
	if h.index == nil {
		h.index = make(map[string]string, 8)
	}
	h.fields = append(h.fields, HeaderField{Name: name, Value: value})
	h.index[strings.ToLower(name)] = value
}

// Set replaces any existing occurrences of name with a single field holding
// value. Used by the response builder, which never emits duplicate headers.
func (h *Header) Set(name, value string) {
	lower := strings.ToLower(name)
	if h.index == nil {
		h.index = make(map[string]string, 8)
	}
	out := h.fields[:0]
	for _, f := range h.fields {
		if strings.ToLower(f.Name) != lower {
			out = append(out, f)
		}
	}
	h.fields = append(out, HeaderField{Name: name, Value: value})
	h.index[lower] = value
}

// Del removes every occurrence of name (case-insensitive).
func (h *Header) Del(name string) {
	lower := strings.ToLower(name)
	out := h.fields[:0]
	for _, f := range h.fields {
		if strings.ToLower(f.Name) != lower {
			out = append(out, f)
		}
	}
	h.fields = out
	if h.index != nil {
		delete(h.index, lower)
	}
}

// Get returns the last value seen for name (case-insensitive), or "" and
// false if absent.
func (h *Header) Get(name string) (string, bool) {
	if h.index == nil {
		return "", false
	}
	v, ok := h.index[strings.ToLower(name)]
	return v, ok
}

// GetDefault returns Get's value or def if absent.
func (h *Header) GetDefault(name, def string) string {
	if v, ok := h.Get(name); ok {
		return v
	}
	return def
}

// Count returns how many times name appears (case-insensitive), used to
// detect a missing or duplicated Host header.
func (h *Header) Count(name string) int {
	lower := strings.ToLower(name)
	n := 0
	for _, f := range h.fields {
		if strings.ToLower(f.Name) == lower {
			n++
		}
	}
	return n
}

// Fields returns the header list in original wire order, for logging.
func (h *Header) Fields() []HeaderField {
	return h.fields
}
