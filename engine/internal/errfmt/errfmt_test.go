package errfmt

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTruncate_ShortPassthrough(t *testing.T) {
	result := Truncate("short message")
	if result != "short message" {
		t.Errorf("Truncate() = %q, want %q", result, "short message")
	}
}

func TestTruncate_LongMessage(t *testing.T) {
	longMsg := strings.Repeat("x", MaxLen+500)
	result := Truncate(longMsg)
	if len(result) > MaxLen {
		t.Errorf("len(result) = %d, want <= %d", len(result), MaxLen)
	}
}

func TestTruncate_UTF8Truncation(t *testing.T) {
	prefix := strings.Repeat("x", MaxLen-2)
	input := prefix + "\U0001F600" // 4-byte emoji at boundary
	result := Truncate(input)
	if len(result) > MaxLen {
		t.Errorf("len(result) = %d, want <= %d", len(result), MaxLen)
	}
	if !utf8.ValidString(result) {
		t.Error("result is not valid UTF-8")
	}
}

func TestTail_UnderLimit(t *testing.T) {
	got, dropped := Tail([]byte("hello"), 10)
	if dropped {
		t.Error("dropped = true, want false")
	}
	if string(got) != "hello" {
		t.Errorf("Tail() = %q, want %q", got, "hello")
	}
}

func TestTail_KeepsEnd(t *testing.T) {
	got, dropped := Tail([]byte("abcdefgh"), 3)
	if !dropped {
		t.Error("dropped = false, want true")
	}
	if string(got) != "fgh" {
		t.Errorf("Tail() = %q, want %q", got, "fgh")
	}
}

func TestTail_AdvancesPastContinuationBytes(t *testing.T) {
	// "é" is two bytes; a 4-byte window would start on its continuation byte.
	in := []byte("aé日z")
	for limit := 0; limit <= len(in); limit++ {
		buf := append([]byte(nil), in...)
		got, _ := Tail(buf, limit)
		if len(got) > limit {
			t.Errorf("limit %d: len = %d", limit, len(got))
		}
		if !utf8.Valid(got) {
			t.Errorf("limit %d: %q is not valid UTF-8", limit, got)
		}
		if !strings.HasSuffix(string(in), string(got)) {
			t.Errorf("limit %d: %q is not a suffix of the input", limit, got)
		}
	}
}

func TestTail_ZeroLimit(t *testing.T) {
	got, dropped := Tail([]byte("x"), 0)
	if !dropped || len(got) != 0 {
		t.Errorf("Tail(x, 0) = %q, %v; want empty, true", got, dropped)
	}
}

func TestLine_StripsControlAndNewline(t *testing.T) {
	got := Line("warn:\x1b[31m red\tok\r\n")
	if got != "warn:[31m red\tok" {
		t.Errorf("Line() = %q", got)
	}
}

func TestHead(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"end_turn", 64, "end_turn"},
		{"abcdef", 3, "abc"},
		{"ab日", 4, "ab"},
		{"日本", 3, "日"},
		{"x", 0, ""},
		{"x", -1, ""},
	}
	for _, tt := range tests {
		if got := Head(tt.in, tt.limit); got != tt.want {
			t.Errorf("Head(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}
