package digest

import (
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// HeaderName is the RFC 3230 instance digest header.
const HeaderName = "Digest"

// Entry is a single name=value pair of a Digest header.
type Entry struct {
	Name  string
	Value string
}

func (e Entry) String() string {
	return e.Name + "=" + e.Value
}

// FormatHeader joins entries in order into a Digest header value.
func FormatHeader(entries []Entry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		parts[i] = e.String()
	}

	return strings.Join(parts, ",")
}

// ParseHeader splits a Digest header value into its entries, keeping their
// order. Each entry is split on its first "="; whitespace is not trimmed.
//
// It returns ErrInvalidDigestHeader when an entry has no "=".
func ParseHeader(value string) ([]Entry, error) {
	var entries []Entry

	for part := range strings.SplitSeq(value, ",") {
		name, val, ok := strings.Cut(part, "=")
		if !ok {
			return nil, ErrInvalidDigestHeader
		}

		entries = append(entries, Entry{Name: name, Value: val})
	}

	return entries, nil
}

// headerValue returns the combined Digest header of h and whether at least
// one Digest field line is present.
func headerValue(h http.Header) (string, bool) {
	values := h.Values(HeaderName)
	if len(values) == 0 {
		return "", false
	}

	return strings.Join(values, ","), true
}

func validHeaderValue(v string) bool {
	return httpguts.ValidHeaderFieldValue(v)
}
