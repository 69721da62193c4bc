package tools

import (
	"log"
	"maps"
	"strings"
	"unicode/utf8"
)

const (
	// MaxNameLength is the provider limit on tool names.
	MaxNameLength = 64
	// NameDelimiter separates the segments of generated tool names,
	// e.g. api_call_get_users_by_id.
	NameDelimiter = "_"

	fallbackLength = 60
	ellipsis       = "..."
)

// Validate returns copies of the tools with names shortened to fit
// MaxNameLength. It never fails. Distinct names may collide after
// truncation; collisions are not resolved here.
func Validate(toolset []Tool) []Tool {
	validated := make([]Tool, 0, len(toolset))
	for _, t := range toolset {
		v := Tool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: maps.Clone(t.InputSchema),
		}
		if v.InputSchema == nil {
			v.InputSchema = map[string]any{}
		}
		if utf8.RuneCountInString(v.Name) > MaxNameLength {
			v.Name = TruncateName(t.Name)
			log.Printf("✂️ Tool name too long (%d chars), truncated: %s -> %s", utf8.RuneCountInString(t.Name), t.Name, v.Name)
		}
		validated = append(validated, v)
	}
	return validated
}

// TruncateName shortens a name longer than MaxNameLength. With at least three
// segments it keeps the first three and the last one and fills the remaining
// room with as much of the middle as fits. Otherwise, or when the kept
// segments alone are too long, it cuts to 60 characters plus "...".
func TruncateName(name string) string {
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	parts := strings.Split(name, NameDelimiter)
	if len(parts) >= 3 {
		prefix := strings.Join(parts[:3], NameDelimiter)
		suffix := parts[len(parts)-1]
		remaining := MaxNameLength - utf8.RuneCountInString(prefix) - utf8.RuneCountInString(suffix) - 2*utf8.RuneCountInString(NameDelimiter)
		if remaining > 0 {
			var middle string
			if len(parts) > 4 {
				middle = strings.Join(parts[3:len(parts)-1], NameDelimiter)
			}
			middle = truncateRunes(middle, remaining)
			return prefix + NameDelimiter + middle + NameDelimiter + suffix
		}
	}
	return truncateRunes(name, fallbackLength) + ellipsis
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
