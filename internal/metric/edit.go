package metric

import "unicode/utf8"

// invalidByte offsets a byte that is not part of valid UTF-8 into the low
// surrogate range, which never decodes from valid input.
const invalidByte = 0xDC00

// symbols splits s into runes. Unlike []rune(s), each invalid byte keeps its
// own identity instead of collapsing into utf8.RuneError, so distinct byte
// strings never compare equal.
func symbols(s string) []rune {
	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			r = invalidByte + rune(s[i])
		}
		out = append(out, r)
		i += size
	}
	return out
}

// DamerauLevenshtein returns the edit distance between a and b counting
// single-rune insertions, deletions, substitutions and transpositions of two
// adjacent runes, each at cost 1. Unlike OSA, a transposed pair may be edited
// again afterwards, which keeps the triangle inequality intact.
func DamerauLevenshtein(a, b string) int {
	source := symbols(a)
	target := symbols(b)

	n := len(source)
	m := len(target)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	// (n+2)x(m+2) row-major table; row and column 0 hold the sentinel.
	width := m + 2
	d := make([]int, (n+2)*width)
	at := func(i, j int) *int { return &d[i*width+j] }

	inf := n + m
	*at(0, 0) = inf
	for i := 0; i <= n; i++ {
		*at(i+1, 0) = inf
		*at(i+1, 1) = i
	}
	for j := 0; j <= m; j++ {
		*at(0, j+1) = inf
		*at(1, j+1) = j
	}

	// last row in which each rune of source was seen
	lastRow := make(map[rune]int, n)

	for i := 1; i <= n; i++ {
		lastMatchCol := 0
		for j := 1; j <= m; j++ {
			i1 := lastRow[target[j-1]]
			j1 := lastMatchCol

			cost := 1
			if source[i-1] == target[j-1] {
				cost = 0
				lastMatchCol = j
			}

			*at(i+1, j+1) = min(
				*at(i, j)+cost, // substitution
				*at(i+1, j)+1,  // insertion
				*at(i, j+1)+1,  // deletion
				*at(i1, j1)+(i-i1-1)+1+(j-j1-1), // transposition
			)
		}
		lastRow[source[i-1]] = i
	}

	return *at(n+1, m+1)
}

// OSA returns the optimal string alignment distance: Damerau-Levenshtein
// restricted so that no substring is edited more than once. It is cheaper
// than DamerauLevenshtein but is not a true metric ("ca" -> "abc" is 3 while
// "ca" -> "ac" -> "abc" is 2), so trees built on it can miss matches.
func OSA(a, b string) int {
	source := symbols(a)
	target := symbols(b)

	n := len(source)
	m := len(target)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}

	width := m + 1
	matrix := make([]int, (n+1)*width)
	at := func(i, j int) *int { return &matrix[i*width+j] }

	for i := 0; i <= n; i++ {
		*at(i, 0) = i
	}
	for j := 0; j <= m; j++ {
		*at(0, j) = j
	}

	for i := 1; i <= n; i++ {
		si := source[i-1]
		for j := 1; j <= m; j++ {
			tj := target[j-1]

			cost := 1
			if si == tj {
				cost = 0
			}

			cell := min(*at(i-1, j)+1, *at(i, j-1)+1, *at(i-1, j-1)+cost)

			if i > 1 && j > 1 {
				trans := *at(i-2, j-2) + 1
				if source[i-2] != tj {
					trans++
				}
				if si != target[j-2] {
					trans++
				}
				cell = min(cell, trans)
			}

			*at(i, j) = cell
		}
	}

	return *at(n, m)
}

// Levenshtein returns the classic edit distance between a and b, without
// transpositions. It keeps two rows of the matrix instead of the whole table.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}

	r1 := symbols(a)
	r2 := symbols(b)
	if len(r1) == 0 {
		return len(r2)
	}
	if len(r2) == 0 {
		return len(r1)
	}

	// Keep the shorter string along the row
	if len(r1) > len(r2) {
		r1, r2 = r2, r1
	}

	prev := make([]int, len(r1)+1)
	curr := make([]int, len(r1)+1)
	for i := range prev {
		prev[i] = i
	}

	for j := 1; j <= len(r2); j++ {
		curr[0] = j
		for i := 1; i <= len(r1); i++ {
			cost := 0
			if r1[i-1] != r2[j-1] {
				cost = 1
			}
			curr[i] = min(
				prev[i]+1,      // deletion
				curr[i-1]+1,    // insertion
				prev[i-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}

	return prev[len(r1)]
}
