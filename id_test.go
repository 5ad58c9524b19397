package agentbridge

import (
	"encoding/json"
	"testing"
)

func TestRequestID_JSONPreservesForm(t *testing.T) {
	tests := []struct {
		in       string
		isString bool
		text     string
	}{
		{`7`, false, "7"},
		{`-3`, false, "-3"},
		{`"req-abc"`, true, "req-abc"},
		{`"42"`, true, "42"},
		{`""`, true, ""},
		{` 12 `, false, "12"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var id RequestID
			if err := json.Unmarshal([]byte(tt.in), &id); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.in, err)
			}
			if id.IsString() != tt.isString {
				t.Errorf("IsString = %v, want %v", id.IsString(), tt.isString)
			}
			if id.String() != tt.text {
				t.Errorf("String = %q, want %q", id.String(), tt.text)
			}
			out, err := json.Marshal(id)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			var want, got any
			_ = json.Unmarshal([]byte(tt.in), &want)
			_ = json.Unmarshal(out, &got)
			if want != got {
				t.Errorf("round trip = %s, want %s", out, tt.in)
			}
		})
	}
}

func TestRequestID_UnmarshalRejects(t *testing.T) {
	for _, in := range []string{`null`, `1.5`, `1e3`, `true`, `{}`, `[1]`, `"unterminated`} {
		var id RequestID
		if err := id.UnmarshalJSON([]byte(in)); err == nil {
			t.Errorf("UnmarshalJSON(%s) = %v, want error", in, id)
		}
	}
}

func TestRequestID_Comparable(t *testing.T) {
	pending := map[RequestID]string{
		NumberID(42):   "number",
		StringID("42"): "string",
	}
	if len(pending) != 2 {
		t.Fatalf("numeric and string ids collided: %v", pending)
	}
	if got := pending[ParseRequestID("42")]; got != "number" {
		t.Errorf("ParseRequestID(42) found %q, want number", got)
	}
	if got := pending[StringID("42")]; got != "string" {
		t.Errorf("StringID(42) found %q, want string", got)
	}
}

func TestParseRequestID(t *testing.T) {
	tests := []struct {
		in   string
		want RequestID
	}{
		{"1", NumberID(1)},
		{"-9", NumberID(-9)},
		{"perm-1", StringID("perm-1")},
		{"1.0", StringID("1.0")},
		{"99999999999999999999", StringID("99999999999999999999")},
		{"", StringID("")},
	}
	for _, tt := range tests {
		if got := ParseRequestID(tt.in); got != tt.want {
			t.Errorf("ParseRequestID(%q) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
	if n, ok := NumberID(5).Int64(); !ok || n != 5 {
		t.Errorf("Int64 = %d, %v; want 5, true", n, ok)
	}
	if _, ok := StringID("5").Int64(); ok {
		t.Error("Int64 ok for string id")
	}
}

func FuzzRequestID(f *testing.F) {
	for _, seed := range []string{`1`, `"a"`, `-0`, `"é"`, `9223372036854775807`, `null`} {
		f.Add(seed)
	}
	f.Fuzz(func(t *testing.T, in string) {
		var id RequestID
		if err := json.Unmarshal([]byte(in), &id); err != nil {
			return
		}
		out, err := json.Marshal(id)
		if err != nil {
			t.Fatalf("Marshal(%#v): %v", id, err)
		}
		var again RequestID
		if err := json.Unmarshal(out, &again); err != nil {
			t.Fatalf("re-Unmarshal(%s): %v", out, err)
		}
		if again != id {
			t.Fatalf("round trip changed id: %#v -> %s -> %#v", id, out, again)
		}
	})
}
