package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/yungbote/paperdesk-backend/internal/domain"
)

// buildContext concatenates passages into a prompt-ready block with ordinal
// labels, stopping before maxChars would be exceeded. The budget counts
// runes, matching the truncation unit. The first passage is always included,
// truncated if necessary.
func buildContext(passages []domain.Passage, maxChars int) string {
	var b strings.Builder
	used := 0
	for i, p := range passages {
		header := fmt.Sprintf("[%d]", i+1)
		if title := strings.TrimSpace(p.Title); title != "" {
			header += " " + title
		}
		section := header + "\n" + strings.TrimSpace(p.Text)
		sectionLen := utf8.RuneCountInString(section)

		sep := 0
		if used > 0 {
			sep = 2
		}
		if maxChars > 0 && used+sep+sectionLen > maxChars {
			if used == 0 {
				return truncateRunes(section, maxChars)
			}
			break
		}
		if sep > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(section)
		used += sep + sectionLen
	}
	return b.String()
}

func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
