package mem

import "testing"

func TestBucketSliceStablePointers(t *testing.T) {
	var l BucketSlice[int]
	first := l.Append(1)
	for i := 2; i <= 3*bucketSize; i++ {
		l.Append(i)
	}
	if *first != 1 {
		t.Fatalf("first element moved or changed: got %d", *first)
	}
	*first = 42
	if got := l.At(0); got != 42 {
		t.Errorf("At(0) = %d, want 42", got)
	}
	if got := l.Len(); got != 3*bucketSize {
		t.Errorf("Len() = %d, want %d", got, 3*bucketSize)
	}
	if got := *l.Last(); got != 3*bucketSize {
		t.Errorf("Last() = %d, want %d", got, 3*bucketSize)
	}
	if got := l.At(bucketSize); got != bucketSize+1 {
		t.Errorf("At(%d) = %d, want %d", bucketSize, got, bucketSize+1)
	}

	l.Reset()
	if l.Len() != 0 || l.Last() != nil {
		t.Errorf("Reset left %d elements", l.Len())
	}
}

func TestAllocationCache(t *testing.T) {
	allocs := 0
	c := AllocationCache[[4]int]{New: func() *[4]int {
		allocs++
		return new([4]int)
	}}
	a := c.Get()
	c.Put(a)
	if b := c.Get(); b != a {
		t.Errorf("Get didn't reuse cached item")
	}
	c.Get()
	if allocs != 2 {
		t.Errorf("got %d allocations, want 2", allocs)
	}
}

func TestEnsureLen(t *testing.T) {
	s := EnsureLen([]int{1}, 3)
	if len(s) != 3 || s[0] != 1 || s[2] != 0 {
		t.Errorf("EnsureLen = %v", s)
	}
	if s2 := EnsureLen(s, 2); len(s2) != 3 {
		t.Errorf("EnsureLen shrank slice to %d", len(s2))
	}
}
