package telegram

import (
	"strings"
	"testing"
)

func TestMarkdownToTelegramHTML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"plain", "hello world", "hello world"},
		{"bold", "**bold** text", "<b>bold</b> text"},
		{"italic", "an *italic* word", "an <i>italic</i> word"},
		{"strikethrough", "~~gone~~", "<s>gone</s>"},
		{"inline code", "run `go test` now", "run <code>go test</code> now"},
		{"header", "# Title", "<b>Title</b>"},
		{"list bullet", "- item one\n- item two", "• item one\n• item two"},
		{"escapes html", "1 < 2 & 3 > 2", "1 &lt; 2 &amp; 3 &gt; 2"},
		{"link", "[docs](https://example.com)", `<a href="https://example.com">docs</a>`},
		{"snake_case untouched", "use snake_case here", "use snake_case here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MarkdownToTelegramHTML(tt.input); got != tt.want {
				t.Errorf("MarkdownToTelegramHTML(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMarkdownToTelegramHTMLCodeBlock(t *testing.T) {
	input := "before\n```go\nif a < b {\n}\n```\nafter"
	got := MarkdownToTelegramHTML(input)

	if !strings.Contains(got, "<pre><code>if a &lt; b {\n}</code></pre>") {
		t.Errorf("code block not preserved/escaped: %q", got)
	}
	if strings.Contains(got, "```") {
		t.Errorf("fence markers leaked through: %q", got)
	}
}

func TestMarkdownInsideCodeNotConverted(t *testing.T) {
	got := MarkdownToTelegramHTML("`**not bold**`")
	if got != "<code>**not bold**</code>" {
		t.Errorf("markdown inside inline code converted: %q", got)
	}
}

func TestSplitMessageShortPassthrough(t *testing.T) {
	parts := SplitMessage("short", 100)
	if len(parts) != 1 || parts[0] != "short" {
		t.Errorf("parts = %v, want [short]", parts)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("a", 60) + "\n" + strings.Repeat("b", 60)
	parts := SplitMessage(text, 100)
	if len(parts) != 2 {
		t.Fatalf("len = %d, want 2", len(parts))
	}
	if !strings.HasSuffix(parts[0], "\n") {
		t.Errorf("first part should end at the newline, got %q", parts[0])
	}
	for i, p := range parts {
		if len(p) > 100 {
			t.Errorf("part %d exceeds limit: %d bytes", i, len(p))
		}
	}
}

func TestSplitMessageReassembles(t *testing.T) {
	text := strings.Repeat("line of text\n", 500)
	parts := SplitMessage(text, MaxMessageLen)
	if strings.Join(parts, "") != text {
		t.Error("joined parts do not reproduce the input")
	}
}

func TestSplitHTMLMessageAvoidsTagSplit(t *testing.T) {
	// Force the split point into the middle of an <a> tag.
	prefix := strings.Repeat("x", 80)
	text := prefix + `<a href="https://example.com/long/path">link</a>` + strings.Repeat("y", 80)
	for _, part := range SplitHTMLMessage(text, 100) {
		lastLT := strings.LastIndex(part, "<")
		lastGT := strings.LastIndex(part, ">")
		if lastLT > lastGT {
			t.Errorf("part splits inside a tag: %q", part)
		}
	}
}

func TestSplitHTMLMessageAvoidsEntitySplit(t *testing.T) {
	text := strings.Repeat("x", 98) + "&amp;" + strings.Repeat("y", 50)
	for _, part := range SplitHTMLMessage(text, 100) {
		lastAmp := strings.LastIndex(part, "&")
		lastSemi := strings.LastIndex(part, ";")
		if lastAmp > lastSemi {
			t.Errorf("part splits inside an entity: %q", part)
		}
	}
}

func TestEscapeHTMLAttr(t *testing.T) {
	got := EscapeHTMLAttr(`a"b'c<d`)
	want := "a&quot;b&#39;c&lt;d"
	if got != want {
		t.Errorf("EscapeHTMLAttr = %q, want %q", got, want)
	}
}
