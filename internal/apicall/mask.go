package apicall

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maskFill replaces every credential the masker hides.
const maskFill = "********"

var sensitiveHeaders = map[string]struct{}{
	"authorization": {},
	"x-api-key":     {},
	"api-key":       {},
	"token":         {},
	"apikey":        {},
}

// IsSensitiveHeader reports whether a header carries credentials.
func IsSensitiveHeader(name string) bool {
	_, ok := sensitiveHeaders[strings.ToLower(name)]
	return ok
}

// MaskHeaders returns a copy of headers with credential values hidden.
// "Bearer xyz..." keeps its scheme, bare keys keep their first four
// characters, and values of eight characters or fewer are hidden entirely.
// The input map is never modified.
func MaskHeaders(headers map[string]string) map[string]string {
	masked := make(map[string]string, len(headers))
	for name, value := range headers {
		if IsSensitiveHeader(name) {
			value = MaskValue(value)
		}
		masked[name] = value
	}
	return masked
}

// MaskValue hides a single credential value.
func MaskValue(value string) string {
	if utf8.RuneCountInString(value) <= 8 {
		return maskFill
	}
	if scheme, _, found := strings.Cut(value, " "); found && scheme != "" {
		return scheme + " " + maskFill
	}
	return string([]rune(value)[:4]) + maskFill
}

// MaskSensitive returns a copy of a decoded JSON value in which every object
// member named like a credential header is hidden, at any depth. Tool inputs
// carry per-call headers this way before they are logged or reported.
func MaskSensitive(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if IsSensitiveHeader(k) {
				out[k] = maskMember(item)
				continue
			}
			out[k] = MaskSensitive(item)
		}
		return out
	case map[string]string:
		return MaskHeaders(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = MaskSensitive(item)
		}
		return out
	default:
		return v
	}
}

func maskMember(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return MaskValue(val)
	case map[string]any, map[string]string, []any:
		return MaskSensitive(val)
	default:
		return MaskValue(fmt.Sprint(val))
	}
}
