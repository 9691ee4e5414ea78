package utils

import "testing"

func TestNormalizePlate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"ab 1234", "AB1234"},
		{"AB-1234", "AB1234"},
		{"กก 1234", "กก1234"},
		{" !@# ", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := NormalizePlate(c.in); got != c.want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSanitizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"AB 1234", "AB1234"},
		{"กก1234", "กก1234"},
		{"a/b\\c:d", "abcd"},
		{"under_score-dash", "under_score-dash"},
		{"///", "Unknown"},
		{"", "Unknown"},
	}
	for _, c := range cases {
		if got := SanitizeName(c.in); got != c.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
