// Package extract locates structured JSON inside free-text model output.
package extract

import (
	"encoding/json"
	"strings"
)

// Status is the outcome of scanning a text for a JSON object
type Status int

const (
	// NoMatch means the text has no opening brace at all
	NoMatch Status = iota
	// Object means a complete, valid JSON object was found
	Object
	// Malformed means braces were found but never balanced or did not decode
	Malformed
)

func (s Status) String() string {
	switch s {
	case Object:
		return "object"
	case Malformed:
		return "malformed"
	default:
		return "no_match"
	}
}

// Result of FirstObject. Raw is set only when Status is Object.
type Result struct {
	Status Status
	Raw    string
}

// Decode unmarshals the object into v. It returns false unless Status is Object
// and the object decodes into v.
func (r Result) Decode(v any) bool {
	if r.Status != Object {
		return false
	}
	return json.Unmarshal([]byte(r.Raw), v) == nil
}

// FirstObject returns the first balanced {...} block in text that is valid JSON.
// Braces inside JSON string literals are ignored.
func FirstObject(text string) Result {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return Result{Status: NoMatch}
	}

	for start >= 0 {
		end := balancedEnd(text, start)
		if end < 0 {
			return Result{Status: Malformed}
		}
		candidate := text[start : end+1]
		if json.Valid([]byte(candidate)) {
			return Result{Status: Object, Raw: candidate}
		}

		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return Result{Status: Malformed}
}

// balancedEnd returns the index of the brace closing the one at start, or -1
func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}

		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
