// Package enums holds the string enums stored in Postgres text columns and
// carried on the wire. Values are case-sensitive unless a parser says otherwise.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

type set[T ~string] []T

func (s set[T]) has(v T) bool { return slices.Contains(s, v) }

// parse matches raw exactly; kind names the enum in the error.
func (s set[T]) parse(kind, raw string) (T, error) {
	if v := T(raw); s.has(v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}

// parseFold ignores case and surrounding space.
func (s set[T]) parseFold(kind, raw string) (T, error) {
	trimmed := strings.TrimSpace(raw)
	for _, v := range s {
		if strings.EqualFold(string(v), trimmed) {
			return v, nil
		}
	}
	return "", fmt.Errorf("invalid %s %q", kind, raw)
}
