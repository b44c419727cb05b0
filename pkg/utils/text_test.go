package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
	if got := Truncate("写真の検索", 2); got != "写真..." {
		t.Errorf("multibyte: got %s", got)
	}
}

func TestTruncateMiddle(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short.jpg", 20, "short.jpg"},
		{"https://example.com/images/very/long/path/cat.jpg", 20, "https://...h/cat.jpg"},
		{"abcdef", 3, "abcdef"},
	}
	for _, tt := range tests {
		if got := TruncateMiddle(tt.in, tt.max); got != tt.want {
			t.Errorf("TruncateMiddle(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}
