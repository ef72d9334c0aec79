package engine

import (
	"sort"
	"strconv"
	"strings"
)

// Selection is an unordered set of entity keys.
type Selection map[string]struct{}

// NewSelection builds a selection from keys. Keys are trimmed, blanks dropped, duplicates collapsed.
func NewSelection(keys ...string) Selection {
	sel := make(Selection, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		sel[k] = struct{}{}
	}
	return sel
}

func (s Selection) Len() int { return len(s) }

func (s Selection) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Keys returns the members sorted lexically.
func (s Selection) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Canonical returns an order-independent string form, used as a cache key.
// Each key is length-prefixed, so distinct selections never share a form
// whatever bytes the keys contain.
func (s Selection) Canonical() string {
	var b strings.Builder
	for _, k := range s.Keys() {
		b.WriteString(strconv.Itoa(len(k)))
		b.WriteByte(':')
		b.WriteString(k)
	}
	return b.String()
}
