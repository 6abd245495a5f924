package handler

import "testing"

func TestItoa(t *testing.T) {
	cases := map[int]string{
		0:   "0",
		5:   "5",
		42:  "42",
		120: "120",
	}
	for n, want := range cases {
		if got := itoa(n); got != want {
			t.Errorf("itoa(%d) = %q, want %q", n, got, want)
		}
	}
}
