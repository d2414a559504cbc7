// Package extract turns raw page markup into named field values. Recipes
// are pure functions with no hierarchy awareness; resolving fields into
// entity records happens downstream.
package extract

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// cleanText collapses whitespace runs to single spaces and trims.
func cleanText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// parseInt parses a platform-reported count. Returns nil when the text is
// not a plain non-negative integer, so "absent" stays distinguishable from
// zero.
func parseInt(text string) *int {
	clean := strings.TrimSpace(text)
	if clean == "" {
		return nil
	}
	n, err := strconv.Atoi(clean)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// ResolveURL resolves href against base. Absolute hrefs pass through;
// unparseable input returns the trimmed href verbatim (off-platform links
// are preserved, not validated).
func ResolveURL(base string, href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}
