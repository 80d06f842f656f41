package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SnippetMaxLen caps transcript snippets in search responses.
const SnippetMaxLen = 200

// Snippet extracts a short transcript excerpt centered on the first query
// term found in the text. When no term matches, the leading portion of the
// transcript is returned. The result never exceeds maxLen characters plus an
// ellipsis on truncated sides.
func Snippet(text, query string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" || maxLen <= 0 {
		return ""
	}
	if len(text) <= maxLen {
		return text
	}

	pos := firstTermIndex(text, query)
	if pos < 0 {
		return truncateAtWord(text, maxLen) + "..."
	}

	// Center a maxLen window on the match.
	start := pos - maxLen/2
	if start < 0 {
		start = 0
	}
	end := start + maxLen
	if end > len(text) {
		end = len(text)
		start = end - maxLen
	}

	// Snap to word boundaries so the snippet does not cut words in half.
	if start > 0 {
		if i := strings.IndexByte(text[start:end], ' '); i >= 0 {
			start += i + 1
		}
	}
	if end < len(text) {
		if i := strings.LastIndexByte(text[start:end], ' '); i > 0 {
			end = start + i
		}
	}
	// Text without spaces (unsegmented CJK) keeps raw byte offsets; never
	// split a rune.
	start = snapRuneForward(text, start)
	end = snapRuneBackward(text, end)
	if start > end {
		start = end
	}

	out := text[start:end]
	if start > 0 {
		out = "..." + out
	}
	if end < len(text) {
		out += "..."
	}
	return out
}

// firstTermIndex returns the byte offset of the earliest occurrence of any
// query term in text, case-insensitively, or -1 when nothing matches.
func firstTermIndex(text, query string) int {
	lower := strings.ToLower(text)
	best := -1
	for _, term := range strings.Fields(strings.ToLower(query)) {
		term = strings.TrimFunc(term, unicode.IsPunct)
		if term == "" {
			continue
		}
		if i := strings.Index(lower, term); i >= 0 && (best < 0 || i < best) {
			best = i
		}
	}
	return best
}

func truncateAtWord(text string, maxLen int) string {
	if i := strings.LastIndexByte(text[:maxLen], ' '); i > 0 {
		return text[:i]
	}
	return text[:snapRuneBackward(text, maxLen)]
}

// snapRuneForward moves i forward to the next rune start.
func snapRuneForward(text string, i int) int {
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}

// snapRuneBackward moves the exclusive offset i back to a rune boundary.
func snapRuneBackward(text string, i int) int {
	for i > 0 && i < len(text) && !utf8.RuneStart(text[i]) {
		i--
	}
	return i
}
