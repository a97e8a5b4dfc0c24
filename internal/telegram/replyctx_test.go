package telegram

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type stubResolver struct {
	url string
	err error
}

func (s stubResolver) GetFileDirectURL(fileID string) (string, error) {
	return s.url, s.err
}

func TestBuildReplyContextNil(t *testing.T) {
	if got := BuildReplyContext(nil, nil, t.TempDir()); got != "" {
		t.Errorf("nil reply should produce no context, got %q", got)
	}
}

func TestBuildReplyContextQuotesText(t *testing.T) {
	reply := &tgbotapi.Message{Text: "the earlier message"}
	got := BuildReplyContext(nil, reply, t.TempDir())
	if !strings.Contains(got, "the earlier message") {
		t.Errorf("quoted text missing: %q", got)
	}
}

func TestBuildReplyContextTextDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("attached file contents"))
	}))
	defer srv.Close()

	old := fileHTTPClient
	fileHTTPClient = srv.Client()
	defer func() { fileHTTPClient = old }()

	reply := &tgbotapi.Message{
		Document: &tgbotapi.Document{FileID: "f1", FileName: "notes.txt"},
	}
	got := BuildReplyContext(stubResolver{url: srv.URL + "/file"}, reply, t.TempDir())
	if !strings.Contains(got, "notes.txt") || !strings.Contains(got, "attached file contents") {
		t.Errorf("document content missing: %q", got)
	}
}

func TestBuildReplyContextUnsupportedDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0x00, 0x01})
	}))
	defer srv.Close()

	old := fileHTTPClient
	fileHTTPClient = srv.Client()
	defer func() { fileHTTPClient = old }()

	reply := &tgbotapi.Message{
		Text:     "here is the binary",
		Document: &tgbotapi.Document{FileID: "f1", FileName: "blob.bin"},
	}
	got := BuildReplyContext(stubResolver{url: srv.URL + "/file"}, reply, t.TempDir())
	if !strings.Contains(got, "here is the binary") {
		t.Errorf("should still quote the text: %q", got)
	}
	if strings.Contains(got, "blob.bin") {
		t.Errorf("unsupported document should be skipped: %q", got)
	}
}

func TestFirstURL(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"no links", ""},
		{"see https://example.com/page for more", "https://example.com/page"},
		{"a http://one.test then https://two.test", "http://one.test"},
	}
	for _, tt := range tests {
		if got := firstURL(tt.text); got != tt.want {
			t.Errorf("firstURL(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestPageTitle(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{"simple", "<html><head><title>My Page</title></head></html>", "My Page"},
		{"whitespace", "<title>\n  Spaced Out \n</title>", "Spaced Out"},
		{"missing", "<html><body>no title</body></html>", ""},
		{"not html", "just some text", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pageTitle(strings.NewReader(tt.html)); got != tt.want {
				t.Errorf("pageTitle = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTruncateContext(t *testing.T) {
	short := "short text"
	if got := truncateContext(short); got != short {
		t.Errorf("short text should pass through, got %q", got)
	}

	long := strings.Repeat("é", maxContextChars)
	got := truncateContext(long)
	if len(got) > maxContextChars+3 {
		t.Errorf("truncated length = %d, want <= %d", len(got), maxContextChars+3)
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated text should end with ellipsis")
	}
	// Never cut a rune in half.
	if !strings.HasPrefix(long, strings.TrimSuffix(got, "...")) {
		t.Error("truncation broke a rune boundary")
	}
}
