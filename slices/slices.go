// Package slices contains stack helpers missing from the standard slices package.
package slices

// Pop removes the last element of s and returns it together with the shortened slice.
func Pop[E any, S ~[]E](s S) (E, S, bool) {
	if len(s) == 0 {
		return *new(E), s, false
	}
	e := s[len(s)-1]
	clear(s[len(s)-1:])
	s = s[:len(s)-1]
	return e, s, true
}

// Last returns the last element of s without removing it.
func Last[E any, S ~[]E](s S) (E, bool) {
	if len(s) == 0 {
		return *new(E), false
	}
	return s[len(s)-1], true
}
