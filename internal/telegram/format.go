package telegram

import (
	"fmt"
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxMessageLen is the maximum Telegram message length.
const MaxMessageLen = 4096

// MarkdownToTelegramHTML converts common markdown patterns found in model
// output to Telegram-compatible HTML. Telegram's HTML mode supports only a
// small subset: <b>, <i>, <s>, <code>, <pre>, <a href="...">.
//
// Code blocks and inline code are extracted first so their contents are not
// processed as markdown, the remaining text is entity-escaped, markdown
// patterns are converted, then the code regions are restored with proper tags.
func MarkdownToTelegramHTML(text string) string {
	if text == "" {
		return ""
	}

	var codeBlocks []string
	text = fencedCodeRegex.ReplaceAllStringFunc(text, func(match string) string {
		sub := fencedCodeRegex.FindStringSubmatch(match)
		code := match
		if len(sub) >= 3 {
			code = sub[2]
		}
		placeholder := fmt.Sprintf("\x00CODEBLOCK%d\x00", len(codeBlocks))
		codeBlocks = append(codeBlocks, code)
		return placeholder
	})

	var inlineCodes []string
	text = inlineCodeRegex.ReplaceAllStringFunc(text, func(match string) string {
		inner := match[1 : len(match)-1]
		placeholder := fmt.Sprintf("\x00INLINECODE%d\x00", len(inlineCodes))
		inlineCodes = append(inlineCodes, inner)
		return placeholder
	})

	text = EscapeHTML(text)

	// Headers become bold lines.
	text = headerRegex.ReplaceAllString(text, "<b>$1</b>")

	// Bold before italic so ** is consumed first.
	text = boldRegex.ReplaceAllString(text, "<b>$1</b>")
	text = boldUnderscoreRegex.ReplaceAllString(text, "<b>$1</b>")
	text = italicRegex.ReplaceAllString(text, "<i>$1</i>")
	text = italicUnderscoreRegex.ReplaceAllString(text, "$1<i>$2</i>")
	text = strikethroughRegex.ReplaceAllString(text, "<s>$1</s>")

	text = linkRegex.ReplaceAllStringFunc(text, func(match string) string {
		sub := linkRegex.FindStringSubmatch(match)
		if len(sub) != 3 {
			return match
		}
		return fmt.Sprintf(`<a href="%s">%s</a>`, EscapeHTMLAttr(html.UnescapeString(sub[2])), sub[1])
	})

	// Blockquotes and list bullets.
	text = blockquoteRegex.ReplaceAllString(text, "▎ <i>$1</i>")
	text = ulRegex.ReplaceAllString(text, "${1}• ")

	for i, code := range codeBlocks {
		placeholder := fmt.Sprintf("\x00CODEBLOCK%d\x00", i)
		text = strings.Replace(text, placeholder, "<pre><code>"+EscapeHTML(code)+"</code></pre>", 1)
	}
	for i, code := range inlineCodes {
		placeholder := fmt.Sprintf("\x00INLINECODE%d\x00", i)
		text = strings.Replace(text, placeholder, "<code>"+EscapeHTML(code)+"</code>", 1)
	}

	return text
}

// EscapeHTML escapes characters that are special in Telegram's HTML parse mode.
func EscapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// EscapeHTMLAttr escapes characters that are special in HTML attribute values.
func EscapeHTMLAttr(s string) string {
	s = EscapeHTML(s)
	s = strings.ReplaceAll(s, `"`, "&quot;")
	s = strings.ReplaceAll(s, `'`, "&#39;")
	return s
}

var (
	// Fenced code blocks: ```lang\ncode\n``` (lang is optional).
	fencedCodeRegex = regexp.MustCompile("(?s)```([^`\n]*)\\n(.*?)\\n?```")

	// Inline code: `code`, no newlines inside.
	inlineCodeRegex = regexp.MustCompile("`([^`\n]+)`")

	headerRegex = regexp.MustCompile(`(?m)^#{1,6}\s+(.+)$`)

	boldRegex           = regexp.MustCompile(`\*\*(.+?)\*\*`)
	boldUnderscoreRegex = regexp.MustCompile(`__([^_\n]+?)__`)

	// Italic runs after bold so remaining single-asterisk pairs are italic.
	italicRegex = regexp.MustCompile(`\*([^*\n]+)\*`)
	// Avoid grabbing within words, e.g. snake_case.
	italicUnderscoreRegex = regexp.MustCompile(`(^|[^[:alnum:]_])_([^_\n]+)_`)

	strikethroughRegex = regexp.MustCompile(`~~(.+?)~~`)

	linkRegex = regexp.MustCompile(`\[([^\]]+)\]\(([^)]+)\)`)

	// Blockquote lines after escaping, hence &gt;.
	blockquoteRegex = regexp.MustCompile(`(?m)^&gt;\s?(.+)$`)

	ulRegex = regexp.MustCompile(`(?m)^(\s*)[-*]\s+`)
)

// SplitMessage splits text into chunks of at most maxLen bytes, preferring
// newline boundaries.
func SplitMessage(text string, maxLen int) []string {
	return splitMessage(text, maxLen, false)
}

// SplitHTMLMessage splits HTML text into chunks while avoiding splits inside
// tags or entities that would make Telegram reject parse_mode=HTML.
func SplitHTMLMessage(text string, maxLen int) []string {
	return splitMessage(text, maxLen, true)
}

func splitMessage(text string, maxLen int, htmlAware bool) []string {
	if maxLen <= 0 {
		maxLen = MaxMessageLen
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	remaining := text
	for len(remaining) > 0 {
		if len(remaining) <= maxLen {
			parts = append(parts, remaining)
			break
		}

		chunk := remaining[:maxLen]
		splitIdx := strings.LastIndex(chunk, "\n")
		if splitIdx < maxLen/2 {
			splitIdx = maxLen
		} else {
			splitIdx++ // include the newline
		}
		splitIdx = safeSplitIndex(remaining, splitIdx, maxLen/2, htmlAware)

		parts = append(parts, remaining[:splitIdx])
		remaining = remaining[splitIdx:]
	}
	return parts
}

func safeSplitIndex(text string, candidate, min int, htmlAware bool) int {
	if candidate <= 0 {
		return 1
	}
	if candidate > len(text) {
		candidate = len(text)
	}
	if min < 1 {
		min = 1
	}
	idx := candidate
	for idx > min {
		prefix := text[:idx]
		if !utf8.ValidString(prefix) {
			idx--
			continue
		}
		if htmlAware && !isSafeHTMLBoundary(prefix) {
			idx--
			continue
		}
		return idx
	}
	return candidate
}

func isSafeHTMLBoundary(prefix string) bool {
	// Inside a tag: "...<a href"
	lastLT := strings.LastIndex(prefix, "<")
	lastGT := strings.LastIndex(prefix, ">")
	if lastLT > lastGT {
		return false
	}

	// Inside an entity: "...&amp"
	lastAmp := strings.LastIndex(prefix, "&")
	lastSemi := strings.LastIndex(prefix, ";")
	return lastAmp <= lastSemi
}
