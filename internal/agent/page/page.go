// Package page reads the visible text of hackathon listing pages.
package page

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// blockTags get a separator so adjacent blocks do not fuse into one word.
const blockTags = "p, div, li, ul, ol, section, h1, h2, h3, h4, h5, h6, td, th, dt, dd, blockquote, pre"

const (
	defaultMaxLen    = 4000
	defaultUserAgent = "hackathonhub/1.0 (+https://hackathonhub.shikanime.studio)"
)

// Reader fetches a page, sanitizes its HTML and returns its text.
type Reader struct {
	hc        *http.Client
	policy    *bluemonday.Policy
	maxLen    int
	userAgent string
}

type Option func(*Reader)

// WithMaxLen truncates returned text to n runes.
func WithMaxLen(n int) Option { return func(r *Reader) { r.maxLen = n } }

func WithUserAgent(ua string) Option { return func(r *Reader) { r.userAgent = ua } }

func NewReader(hc *http.Client, opts ...Option) *Reader {
	if hc == nil {
		hc = http.DefaultClient
	}
	r := &Reader{
		hc:        hc,
		policy:    bluemonday.StrictPolicy(),
		maxLen:    defaultMaxLen,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadText returns the whitespace-normalized text of the page's main
// content, falling back to the body.
func (r *Reader) ReadText(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", "text/html")
	resp, err := r.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch page failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("fetch page failed: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("parse page failed: %w", err)
	}
	doc.Find("script, style, noscript, template, nav, footer, header, form").Remove()
	sel := doc.Find("main, article").First()
	if sel.Length() == 0 {
		sel = doc.Find("body")
	}
	sel.Find(blockTags).Each(func(_ int, s *goquery.Selection) {
		s.BeforeHtml(" ")
		s.AppendHtml(" ")
	})
	inner, err := sel.Html()
	if err != nil {
		return "", fmt.Errorf("render page failed: %w", err)
	}
	// StrictPolicy keeps only text; entities it escapes are decoded back.
	text := html.UnescapeString(r.policy.Sanitize(inner))
	text = strings.Join(strings.Fields(text), " ")
	if rs := []rune(text); r.maxLen > 0 && len(rs) > r.maxLen {
		text = string(rs[:r.maxLen])
	}
	return text, nil
}
