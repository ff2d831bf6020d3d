package slices

import "testing"

func TestPop(t *testing.T) {
	s := []int{1, 2}
	e, s, ok := Pop(s)
	if !ok || e != 2 || len(s) != 1 {
		t.Fatalf("Pop = %d, %v, %t", e, s, ok)
	}
	if last, ok := Last(s); !ok || last != 1 {
		t.Errorf("Last = %d, %t", last, ok)
	}
	_, s, _ = Pop(s)
	if _, _, ok := Pop(s); ok {
		t.Error("Pop on empty slice reported success")
	}
	if _, ok := Last(s); ok {
		t.Error("Last on empty slice reported success")
	}
}
