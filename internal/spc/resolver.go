package spc

import (
	"sort"
	"strings"
	"unicode/utf8"

	"extruder/domain/spc"
)

// ResolveColumn finds the column a data type token refers to. A column
// matches when it starts with the token (case-insensitive) and the next
// character, if any, is not 'Y'. That keeps "x" from claiming the "xY..."
// family reserved for the paired axis. The first match in declared column
// order wins.
func ResolveColumn(ds spc.Dataset, token string) (string, error) {
	if ds.Len() == 0 {
		return "", &spc.ColumnNotFoundError{Token: token, Empty: true}
	}
	if token == "" {
		return "", &spc.ColumnNotFoundError{Token: token}
	}

	columns := ds.Columns
	if len(columns) == 0 {
		columns = recordColumns(ds.Records[0])
	}

	for _, name := range columns {
		if matchesToken(name, token) {
			return name, nil
		}
	}
	return "", &spc.ColumnNotFoundError{Token: token}
}

func matchesToken(name, token string) bool {
	if len(name) < len(token) || !strings.EqualFold(name[:len(token)], token) {
		return false
	}
	rest := name[len(token):]
	if rest == "" {
		return true
	}
	next, _ := utf8.DecodeRuneInString(rest)
	return next != 'Y' && next != 'y'
}

// recordColumns is the fallback schema for datasets built without a header
// list. Map iteration order is random, so names are sorted for determinism.
func recordColumns(r spc.Record) []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
