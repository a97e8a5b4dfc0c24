package telegram

import (
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"
)

// maxImageBytes bounds how much of a remote image is read before sending it
// on to Telegram.
const maxImageBytes = 10 << 20

var imageURLRegex = regexp.MustCompile(`(?i)https?://[^\s<>"')\]]+\.(?:png|jpe?g|gif|webp)(?:\?[^\s<>"')\]]*)?`)

// imageHTTPClient is overridable in tests.
var imageHTTPClient = &http.Client{Timeout: 20 * time.Second}

// ExtractImageURLs scans text for direct image links. Each distinct URL is
// returned once, in order of first appearance.
func ExtractImageURLs(text string) []string {
	matches := imageURLRegex.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		if seen[m] {
			continue
		}
		seen[m] = true
		out = append(out, m)
	}
	return out
}

// FetchImage downloads an image URL with a bounded reader.
func FetchImage(url string) ([]byte, error) {
	resp, err := imageHTTPClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("fetch image: empty body")
	}
	return data, nil
}
