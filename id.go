package agentbridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// RequestID is a JSON-RPC request id: either an integer or a string.
//
// Agent-initiated requests may use either form and the reply must carry the
// id exactly as received, so the original representation is preserved.
// RequestID is comparable and safe to use as a map key.
type RequestID struct {
	num   int64
	str   string
	isStr bool
}

// NumberID returns a numeric request id.
func NumberID(n int64) RequestID {
	return RequestID{num: n}
}

// StringID returns a string request id.
func StringID(s string) RequestID {
	return RequestID{str: s, isStr: true}
}

// ParseRequestID interprets user input as a request id. Input that parses as
// a base-10 integer becomes a numeric id; anything else is a string id.
func ParseRequestID(s string) RequestID {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return NumberID(n)
	}
	return StringID(s)
}

// IsString reports whether the id uses the string form.
func (id RequestID) IsString() bool { return id.isStr }

// Int64 returns the numeric value and true for numeric ids.
func (id RequestID) Int64() (int64, bool) {
	if id.isStr {
		return 0, false
	}
	return id.num, true
}

// String returns the id as plain text, without JSON quoting.
func (id RequestID) String() string {
	if id.isStr {
		return id.str
	}
	return strconv.FormatInt(id.num, 10)
}

// MarshalJSON encodes the id in its original form.
func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.isStr {
		return json.Marshal(id.str)
	}
	return []byte(strconv.FormatInt(id.num, 10)), nil
}

// UnmarshalJSON accepts a JSON string or an integral JSON number.
// null, fractional numbers, and other types are rejected.
func (id *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("request id: empty")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("request id: %w", err)
		}
		*id = StringID(s)
		return nil
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("request id: %s is not a string or integer", data)
	}
	*id = NumberID(n)
	return nil
}
