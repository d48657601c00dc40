package chat

import "testing"

func TestValueWatch(t *testing.T) {
	v := NewValue(1)
	var seen []int
	cancel := v.Watch(func(x int) { seen = append(seen, x) })

	v.Set(2)
	v.Set(3)
	cancel()
	v.Set(4)

	if len(seen) != 2 || seen[0] != 2 || seen[1] != 3 {
		t.Fatalf("seen = %v", seen)
	}
	if v.Get() != 4 || v.Version() != 3 {
		t.Fatalf("get = %d version = %d", v.Get(), v.Version())
	}
}

func TestValueWatcherMaySet(t *testing.T) {
	a := NewValue("")
	b := NewValue("")
	a.Watch(func(x string) { b.Set(x + "!") })

	a.Set("hi")
	if b.Get() != "hi!" {
		t.Fatalf("b = %q", b.Get())
	}
}
