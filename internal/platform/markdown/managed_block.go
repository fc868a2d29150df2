package markdown

import "strings"

// ManagedLines returns the non-empty lines between the markers.
func ManagedLines(body, startMarker, endMarker string) []string {
	start := strings.Index(body, startMarker)
	end := strings.Index(body, endMarker)
	if start < 0 || end <= start {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(body[start+len(startMarker):end], "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// ReplaceManagedLines swaps the block between the markers for lines, or
// appends a new block when body has none. Text outside the block is kept.
func ReplaceManagedLines(body, startMarker, endMarker string, lines []string) string {
	block := startMarker + "\n" + strings.Join(lines, "\n") + "\n" + endMarker
	start := strings.Index(body, startMarker)
	end := strings.Index(body, endMarker)
	if start >= 0 && end > start {
		return body[:start] + block + body[end+len(endMarker):]
	}
	switch {
	case strings.TrimSpace(body) == "":
		return block + "\n"
	case strings.HasSuffix(body, "\n"):
		return body + "\n" + block + "\n"
	default:
		return body + "\n\n" + block + "\n"
	}
}
