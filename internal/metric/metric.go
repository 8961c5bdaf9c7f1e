// Package metric provides distance functions usable as BK-tree metrics.
//
// Every function here is symmetric, returns zero for identical inputs and
// satisfies the triangle inequality. Trees built on a function that breaks
// these rules still work, but searches may silently miss matches.
package metric

import (
	"errors"
	"fmt"
	"sort"
)

// Func computes the distance between two values of the same type.
type Func[T any] func(a, b T) int

// ErrUnknownMetric is returned by ByName for unregistered names.
var ErrUnknownMetric = errors.New("unknown metric")

const (
	// NameDamerau is the default string metric.
	NameDamerau     = "damerau"
	NameOSA         = "osa"
	NameLevenshtein = "levenshtein"
)

// ByName resolves a string metric by the name stored in archives and
// accepted by the --metric flag.
func ByName(name string) (Func[string], error) {
	switch name {
	case NameDamerau, "":
		return DamerauLevenshtein, nil
	case NameOSA:
		return OSA, nil
	case NameLevenshtein:
		return Levenshtein, nil
	default:
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownMetric, name, Names())
	}
}

// Names lists the string metrics ByName understands.
func Names() []string {
	names := []string{NameDamerau, NameOSA, NameLevenshtein}
	sort.Strings(names)
	return names
}
