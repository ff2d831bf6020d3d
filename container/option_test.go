package container

import "testing"

func TestOption(t *testing.T) {
	none := None[int]()
	if none.Set() {
		t.Error("None is set")
	}
	if got := none.GetOr(7); got != 7 {
		t.Errorf("None.GetOr(7) = %d", got)
	}
	if got := none.String(); got != "None" {
		t.Errorf("None.String() = %q", got)
	}

	some := Some(3)
	if v, ok := some.Get(); !ok || v != 3 {
		t.Errorf("Some(3).Get() = %d, %t", v, ok)
	}
	if got := some.GetOr(7); got != 3 {
		t.Errorf("Some(3).GetOr(7) = %d", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("MustGet on None didn't panic")
		}
	}()
	none.MustGet()
}
