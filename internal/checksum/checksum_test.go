package checksum

import "testing"

func TestSum_Stable(t *testing.T) {
	if Sum([]byte("edrak")) != Sum([]byte("edrak")) {
		t.Fatal("same input should yield same digest")
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Fatal("different input should yield different digest")
	}
	if got := len(Sum(nil)); got != 64 {
		t.Errorf("digest length = %d, want 64", got)
	}
}

func TestOf_Unencodable(t *testing.T) {
	if got := Of(make(chan int)); got != "" {
		t.Errorf("Of(chan) = %q, want empty", got)
	}
	if Of(map[string]int{"a": 1}) != Sum([]byte(`{"a":1}`)) {
		t.Error("Of should hash the JSON encoding")
	}
}
