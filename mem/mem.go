// Package mem provides allocation helpers for append-only trace data.
package mem

const bucketSize = 1024

// BucketSlice is like a slice, but grows one bucket at a time, instead of growing exponentially. Elements never move
// once appended, so pointers returned by AtPtr stay valid for the lifetime of the slice, which the trace store relies
// on to patch the end of still-open records in place.
type BucketSlice[T any] struct {
	n       int
	buckets [][]T
}

// Grow grows the slice by one and returns a pointer to the new element, without overwriting it.
func (l *BucketSlice[T]) Grow() *T {
	a, _ := l.index(l.n)
	if a >= len(l.buckets) {
		l.buckets = append(l.buckets, make([]T, 0, bucketSize))
	}
	l.buckets[a] = l.buckets[a][:len(l.buckets[a])+1]
	ptr := &l.buckets[a][len(l.buckets[a])-1]
	l.n++
	return ptr
}

// Append appends v to the slice and returns a pointer to the new element.
func (l *BucketSlice[T]) Append(v T) *T {
	ptr := l.Grow()
	*ptr = v
	return ptr
}

func (l *BucketSlice[T]) index(i int) (int, int) {
	// Doing the division on uint instead of int compiles this function to a shift and an AND.
	return int(uint(i) / bucketSize), int(uint(i) % bucketSize)
}

func (l *BucketSlice[T]) AtPtr(i int) *T {
	a, b := l.index(i)
	return &l.buckets[a][b]
}

func (l *BucketSlice[T]) At(i int) T {
	a, b := l.index(i)
	return l.buckets[a][b]
}

// Last returns a pointer to the most recently appended element, or nil if the slice is empty.
func (l *BucketSlice[T]) Last() *T {
	if l.n == 0 {
		return nil
	}
	return l.AtPtr(l.n - 1)
}

func (l *BucketSlice[T]) Len() int {
	return l.n
}

func (l *BucketSlice[T]) Reset() {
	for i := range l.buckets {
		clear(l.buckets[i])
		l.buckets[i] = l.buckets[i][:0]
	}
	l.n = 0
}

// AllocationCache is a trivial cache of allocations. Put appends a value to a slice and Get pops a value from the
// slice, or allocates a new value using New, falling back to new(T).
type AllocationCache[T any] struct {
	New   func() *T
	items []*T
}

func (c *AllocationCache[T]) Put(x *T) {
	c.items = append(c.items, x)
}

func (c *AllocationCache[T]) Get() *T {
	if len(c.items) == 0 {
		if c.New != nil {
			return c.New()
		}
		return new(T)
	}
	item := c.items[len(c.items)-1]
	c.items[len(c.items)-1] = nil
	c.items = c.items[:len(c.items)-1]
	return item
}

func (c *AllocationCache[T]) Len() int { return len(c.items) }

// GrowLen increases the slice's length by n elements.
func GrowLen[S ~[]E, E any](s S, n int) S {
	return append(s, make([]E, n)...)
}

// EnsureLen grows s so that it has at least n elements. New elements are zero.
func EnsureLen[S ~[]E, E any](s S, n int) S {
	if len(s) >= n {
		return s
	}
	return GrowLen(s, n-len(s))
}
