// Package util holds small generic helpers shared across packages that have
// no better home of their own — slice transforms and deterministic map
// iteration, the kind of thing every package here would otherwise reimplement
// by hand.
package util

import (
	"iter"
	"sort"
)

// TransformSlice applies converter to each element of in and returns the results.
func TransformSlice[T any, R any](in []T, converter func(T) R) []R {
	out := make([]R, len(in))
	for i, v := range in {
		out[i] = converter(v)
	}
	return out
}

// CanonicalMapIter yields map entries in sorted key order, so output that
// walks a map (catalog listings, plan dumps) is deterministic instead of
// depending on Go's randomized map iteration.
func CanonicalMapIter[T any](m map[string]T) iter.Seq2[string, T] {
	return func(yield func(string, T) bool) {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		for _, k := range keys {
			if !yield(k, m[k]) {
				return
			}
		}
	}
}
