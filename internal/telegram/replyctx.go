package telegram

import (
	"fmt"
	stdhtml "html"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
	xhtml "golang.org/x/net/html"

	"github.com/batalabs/gramd/internal/domain"
)

// maxContextChars caps how much replied-to content is folded into the prompt.
const maxContextChars = 4000

// maxSheetRows caps spreadsheet extraction per sheet.
const maxSheetRows = 50

// fileResolver turns a Telegram file ID into a download URL. Satisfied by
// *tgbotapi.BotAPI; narrowed so tests can stub it.
type fileResolver interface {
	GetFileDirectURL(fileID string) (string, error)
}

// fileHTTPClient is overridable in tests.
var fileHTTPClient = &http.Client{Timeout: 30 * time.Second}

var urlRegex = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// BuildReplyContext assembles extra prompt context from the message the user
// replied to: the quoted text, the title of a linked page, a saved copy of an
// attached photo, and extracted text from attached documents. Every piece is
// best-effort; failures degrade to whatever could be gathered.
func BuildReplyContext(r fileResolver, reply *tgbotapi.Message, workDir string) string {
	if reply == nil {
		return ""
	}

	var parts []string

	quoted := strings.TrimSpace(reply.Text)
	if quoted == "" {
		quoted = strings.TrimSpace(reply.Caption)
	}
	if quoted != "" {
		parts = append(parts, "The user is replying to this earlier message:\n"+truncateContext(quoted))
		if u := firstURL(quoted); u != "" {
			if title := fetchPageTitle(u); title != "" {
				parts = append(parts, fmt.Sprintf("The replied message links to %s (page title: %q).", u, title))
			}
		}
	}

	if len(reply.Photo) > 0 && r != nil {
		// Sizes are ordered smallest to largest.
		ps := reply.Photo[len(reply.Photo)-1]
		name := "reply-photo-" + domain.NewUUID()[:8] + ".jpg"
		if path, err := downloadTelegramFile(r, ps.FileID, workDir, name); err == nil {
			parts = append(parts, "The replied message includes a photo saved at "+path+". Use the Read tool to view it.")
		}
	}

	if doc := reply.Document; doc != nil && r != nil {
		if text, err := extractDocumentText(r, doc, workDir); err == nil && text != "" {
			parts = append(parts, fmt.Sprintf("The replied message attaches %s with this content:\n%s",
				doc.FileName, truncateContext(text)))
		}
	}

	return strings.Join(parts, "\n\n")
}

func downloadTelegramFile(r fileResolver, fileID, dir, name string) (string, error) {
	url, err := r.GetFileDirectURL(fileID)
	if err != nil {
		return "", fmt.Errorf("resolve file: %w", err)
	}
	resp, err := fileHTTPClient.Get(url)
	if err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download file: status %d", resp.StatusCode)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, filepath.Base(name))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(f, io.LimitReader(resp.Body, maxImageBytes)); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("download file: %w", err)
	}
	return path, nil
}

func extractDocumentText(r fileResolver, doc *tgbotapi.Document, workDir string) (string, error) {
	name := doc.FileName
	if name == "" {
		name = "attachment"
	}
	path, err := downloadTelegramFile(r, doc.FileID, workDir, name)
	if err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return extractPDFText(path)
	case ".docx":
		return extractDocxText(path)
	case ".xlsx":
		return extractXlsxText(path)
	case ".txt", ".md", ".csv", ".log", ".json", ".yaml", ".yml":
		return readTextFile(path)
	default:
		return "", fmt.Errorf("unsupported document type: %s", name)
	}
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	data, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf text: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

var xmlTagRegex = regexp.MustCompile(`<[^>]*>`)

func extractDocxText(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer r.Close()

	// Raw document XML; paragraph boundaries become newlines, all other
	// markup is stripped.
	content := r.Editable().GetContent()
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = xmlTagRegex.ReplaceAllString(content, "")
	return strings.TrimSpace(stdhtml.UnescapeString(content)), nil
}

func extractXlsxText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		sb.WriteString(sheet + ":\n")
		for i, row := range rows {
			if i >= maxSheetRows {
				sb.WriteString("...\n")
				break
			}
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteByte('\n')
		}
	}
	return strings.TrimSpace(sb.String()), nil
}

func readTextFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxContextChars*4))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func firstURL(text string) string {
	return urlRegex.FindString(text)
}

func fetchPageTitle(url string) string {
	resp, err := fileHTTPClient.Get(url)
	if err != nil {
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}
	return pageTitle(resp.Body)
}

// pageTitle extracts the contents of the first <title> element.
func pageTitle(r io.Reader) string {
	z := xhtml.NewTokenizer(io.LimitReader(r, 256<<10))
	for {
		switch z.Next() {
		case xhtml.ErrorToken:
			return ""
		case xhtml.StartTagToken:
			name, _ := z.TagName()
			if string(name) == "title" {
				if z.Next() == xhtml.TextToken {
					return strings.TrimSpace(string(z.Text()))
				}
				return ""
			}
		}
	}
}

func truncateContext(s string) string {
	if len(s) <= maxContextChars {
		return s
	}
	cut := maxContextChars
	for cut > 0 && !isRuneBoundary(s, cut) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneBoundary(s string, i int) bool {
	return i >= len(s) || (s[i]&0xC0) != 0x80
}
