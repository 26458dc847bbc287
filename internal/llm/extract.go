package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON means the reply contained no JSON value of the requested kind.
var ErrNoJSON = errors.New("no JSON found in reply")

// ExtractObject returns the first balanced {...} literal in text. Code
// fences and surrounding prose are ignored.
func ExtractObject(text string) (string, bool) { return extract(text, '{', '}') }

// ExtractArray returns the first balanced [...] literal in text.
func ExtractArray(text string) (string, bool) { return extract(text, '[', ']') }

func extract(text string, lb, rb byte) (string, bool) {
	for start := strings.IndexByte(text, lb); start >= 0; {
		if end := balancedEnd(text[start:], lb, rb); end > 0 {
			candidate := text[start : start+end]
			if json.Valid([]byte(candidate)) {
				return candidate, true
			}
		}
		next := strings.IndexByte(text[start+1:], lb)
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// balancedEnd returns the length of the bracketed value at the start of s,
// or -1 when it never closes. Brackets inside string literals don't count.
func balancedEnd(s string, lb, rb byte) int {
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case lb:
			depth++
		case rb:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// DecodeObject unmarshals the first JSON object in text into v.
func DecodeObject(text string, v any) error {
	obj, ok := ExtractObject(text)
	if !ok {
		return ErrNoJSON
	}
	return json.Unmarshal([]byte(obj), v)
}

// ExtractIndices reads the first array in text as integers. Non-integer
// entries are skipped.
func ExtractIndices(text string) ([]int, error) {
	arr, ok := ExtractArray(text)
	if !ok {
		return nil, ErrNoJSON
	}
	var raw []any
	if err := json.Unmarshal([]byte(arr), &raw); err != nil {
		return nil, err
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		f, ok := v.(float64)
		if !ok || f != float64(int(f)) {
			continue
		}
		out = append(out, int(f))
	}
	return out, nil
}
