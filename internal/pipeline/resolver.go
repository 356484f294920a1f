package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

var (
	driveFilePattern = regexp.MustCompile(`https?://drive\.google\.com/file/d/([a-zA-Z0-9_-]+)`)
	driveOpenPattern = regexp.MustCompile(`https?://drive\.google\.com/open\?id=([a-zA-Z0-9_-]+)`)
)

// Resolution is the outcome of resolving one link. Failures are data, not
// errors: one bad link must not abort the batch, so a failed fetch comes
// back as StatusCode 0 with the original URL and empty content.
type Resolution struct {
	FinalURL   string
	StatusCode int
	Content    []byte
	PageTitle  string
	Err        string
}

// OK reports whether the fetch reached a 2xx/3xx response.
func (r *Resolution) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 400
}

// LinkResolver fetches links with a bounded timeout and translates known
// cloud-drive share patterns into direct-content URLs before fetching.
type LinkResolver struct {
	client   *http.Client
	maxBytes int64
}

// NewLinkResolver creates a resolver with the given per-link timeout and a
// cap on how many bytes are read for fingerprinting.
func NewLinkResolver(timeout time.Duration, maxBytes int64) *LinkResolver {
	return &LinkResolver{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		maxBytes: maxBytes,
	}
}

// RewriteShareLink translates recognized cloud-drive "view" URLs into their
// direct-download form. Pure string transform; unrecognized URLs pass through.
func RewriteShareLink(raw string) string {
	if m := driveFilePattern.FindStringSubmatch(raw); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	if m := driveOpenPattern.FindStringSubmatch(raw); m != nil {
		return "https://drive.google.com/uc?export=download&id=" + m[1]
	}
	if strings.Contains(raw, "dropbox.com") && strings.Contains(raw, "dl=0") {
		return strings.Replace(raw, "dl=0", "dl=1", 1)
	}
	return raw
}

// Resolve follows redirects and fetches enough content to fingerprint the
// link. Network failures, timeouts and unresolvable hosts yield a sentinel
// failure Resolution rather than an error.
func (lr *LinkResolver) Resolve(ctx context.Context, rawURL string) Resolution {
	fetchURL := RewriteShareLink(rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return Resolution{FinalURL: rawURL, Err: "invalid URL: " + err.Error()}
	}
	req.Header.Set("User-Agent", "mediascore-linkbot/1.0")

	resp, err := lr.client.Do(req)
	if err != nil {
		slog.Debug("link resolution failed", "url", rawURL, "error", err)
		return Resolution{FinalURL: rawURL, Err: err.Error()}
	}
	defer resp.Body.Close()

	content, err := io.ReadAll(io.LimitReader(resp.Body, lr.maxBytes))
	if err != nil {
		return Resolution{
			FinalURL:   resp.Request.URL.String(),
			StatusCode: resp.StatusCode,
			Err:        "read body: " + err.Error(),
		}
	}

	res := Resolution{
		FinalURL:   resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Content:    content,
	}

	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		res.PageTitle = extractTitle(content)
	}

	return res
}

// extractTitle pulls the <title> out of fetched HTML for item metadata.
func extractTitle(content []byte) string {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
