package handler

import "testing"

func TestParsePage(t *testing.T) {
	cases := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{"", 1, false},
		{"1", 1, false},
		{"7", 7, false},
		{"0", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := parsePage(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parsePage(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Errorf("parsePage(%q): unexpected error %v", tc.raw, err)
			continue
		}
		if got != tc.want {
			t.Errorf("parsePage(%q) = %d, want %d", tc.raw, got, tc.want)
		}
	}
}
