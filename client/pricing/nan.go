package pricing

import (
	"bytes"
	"regexp"
)

// nanTokenRegexp matches either a complete JSON string literal or a bare NaN
// literal in value position, i.e. one followed (optionally after whitespace)
// by a comma, closing brace or closing bracket. String literals are matched
// first so that NaN inside text is never rewritten; the word boundary keeps
// identifiers such as "BaNaN" untouched.
var nanTokenRegexp = regexp.MustCompile(`"(?:[^"\\]|\\.)*"|\bNaN(\s*[,}\]])`)

var nullToken = []byte("null")

// RepairNaN rewrites bare NaN tokens to null so the payload becomes valid
// JSON. The pricing API emits NaN for missing statistics.
func RepairNaN(body []byte) []byte {
	return nanTokenRegexp.ReplaceAllFunc(body, func(m []byte) []byte {
		if m[0] == '"' {
			return m
		}
		out := make([]byte, 0, len(nullToken)+len(m)-3)
		out = append(out, nullToken...)
		return append(out, bytes.TrimPrefix(m, []byte("NaN"))...)
	})
}
