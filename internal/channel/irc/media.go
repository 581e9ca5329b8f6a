package irc

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/soyeahso/validade/internal/domain"
)

// maxImageBytes caps a downloaded image.
const maxImageBytes = 10 << 20

var imageLinkRe = regexp.MustCompile(`(?i)\bhttps?://\S+?\.(?:jpe?g|png|webp|gif)(?:\?\S*)?(?:\s|$)`)

// imageLinks removes image URLs from body and returns them separately.
func imageLinks(body string) (string, []string) {
	matches := imageLinkRe.FindAllString(body, -1)
	if len(matches) == 0 {
		return body, nil
	}
	links := make([]string, 0, len(matches))
	for _, m := range matches {
		links = append(links, strings.TrimSpace(m))
	}
	text := strings.Join(strings.Fields(imageLinkRe.ReplaceAllString(body, " ")), " ")
	return text, links
}

// fetcher downloads linked images on demand.
type fetcher struct {
	client *http.Client
}

func newFetcher() *fetcher {
	return &fetcher{client: &http.Client{Timeout: 30 * time.Second}}
}

func (f *fetcher) media(url string) domain.MediaFunc {
	return func(ctx context.Context) ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("fetch image: status %d", resp.StatusCode)
		}
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
		if err != nil {
			return nil, fmt.Errorf("fetch image: %w", err)
		}
		if len(data) > maxImageBytes {
			return nil, fmt.Errorf("fetch image: larger than %d bytes", maxImageBytes)
		}
		return data, nil
	}
}
