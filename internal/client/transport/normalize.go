package transport

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// decimal.js stores mantissa digits in base 1e7 chunks.
const decimalChunkDigits = 7

const maxDecimalExponent = 1 << 12

// Normalize replaces high-precision decimal encodings in a JSON body with
// plain JSON numbers. Three shapes are recognised:
//
//	{"$numberDecimal": "12.50"}
//	{"$type": "Decimal", "value": "12.50"}
//	{"s": 1, "e": 1, "d": [12, 5000000]}
//
// Bodies that are not JSON, or contain none of these, are returned as is.
func Normalize(body []byte) []byte {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return body
	}
	if dec.More() {
		return body
	}

	out, changed := normalizeValue(v)
	if !changed {
		return body
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return body
	}
	return bytes.TrimRight(buf.Bytes(), "\n")
}

func normalizeValue(v any) (any, bool) {
	switch t := v.(type) {
	case map[string]any:
		if n, ok := decimalValue(t); ok {
			return n, true
		}
		changed := false
		for k, child := range t {
			if nv, ok := normalizeValue(child); ok {
				t[k] = nv
				changed = true
			}
		}
		return t, changed
	case []any:
		changed := false
		for i, child := range t {
			if nv, ok := normalizeValue(child); ok {
				t[i] = nv
				changed = true
			}
		}
		return t, changed
	default:
		return v, false
	}
}

func decimalValue(m map[string]any) (json.Number, bool) {
	switch len(m) {
	case 1:
		if s, ok := m["$numberDecimal"].(string); ok {
			return numberFromString(s)
		}
	case 2:
		if m["$type"] == "Decimal" {
			switch val := m["value"].(type) {
			case string:
				return numberFromString(val)
			case json.Number:
				return val, true
			}
		}
	case 3:
		return decimalJS(m)
	}
	return "", false
}

func numberFromString(s string) (json.Number, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !(s[0] == '-' || (s[0] >= '0' && s[0] <= '9')) {
		return "", false
	}
	if !json.Valid([]byte(s)) {
		return "", false
	}
	return json.Number(s), true
}

// decimalJS rebuilds the decimal string of a serialised decimal.js value.
func decimalJS(m map[string]any) (json.Number, bool) {
	sign, ok := intField(m["s"])
	if !ok || (sign != 1 && sign != -1) {
		return "", false
	}
	exp, ok := intField(m["e"])
	if !ok || exp > maxDecimalExponent || exp < -maxDecimalExponent {
		return "", false
	}
	chunks, ok := m["d"].([]any)
	if !ok || len(chunks) == 0 {
		return "", false
	}

	var digits strings.Builder
	for i, c := range chunks {
		n, ok := intField(c)
		if !ok || n < 0 {
			return "", false
		}
		part := strconv.FormatInt(n, 10)
		if i > 0 {
			if len(part) > decimalChunkDigits {
				return "", false
			}
			part = strings.Repeat("0", decimalChunkDigits-len(part)) + part
		}
		digits.WriteString(part)
	}

	mantissa := strings.TrimRight(digits.String(), "0")
	if mantissa == "" {
		return "0", true
	}

	var out string
	intLen := exp + 1
	switch {
	case intLen <= 0:
		out = "0." + strings.Repeat("0", int(-intLen)) + mantissa
	case intLen >= int64(len(mantissa)):
		out = mantissa + strings.Repeat("0", int(intLen)-len(mantissa))
	default:
		out = mantissa[:intLen] + "." + mantissa[intLen:]
	}
	if sign < 0 {
		out = "-" + out
	}
	return json.Number(out), true
}

func intField(v any) (int64, bool) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, false
	}
	i, err := n.Int64()
	return i, err == nil
}
