package extract

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// AgencyCard is one entry from the global agency directory listing.
type AgencyCard struct {
	Name        string
	Description string
	LogoURL     string
	AgencyURL   string
}

// AgencyDirectory extracts agency cards from the directory listing. Each
// card is an anchor wrapping a logo image, an h4 name, and a p description.
func AgencyDirectory(html string, baseURL string) ([]AgencyCard, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	var cards []AgencyCard
	anchors := doc.Find("a")
	anchors.Each(func(_ int, a *goquery.Selection) {
		name := cleanText(a.Find("h4").First().Text())
		if name == "" {
			return
		}
		href, _ := a.Attr("href")
		logo, _ := a.Find("img").First().Attr("src")

		cards = append(cards, AgencyCard{
			Name:        name,
			Description: cleanText(a.Find("p").First().Text()),
			LogoURL:     ResolveURL(baseURL, logo),
			AgencyURL:   ResolveURL(baseURL, href),
		})
	})

	if len(cards) == 0 {
		return nil, fmt.Errorf("no agency entries found among %d candidate anchors", anchors.Length())
	}
	return cards, nil
}

// MinistryLink is one entry from the national ministries listing.
type MinistryLink struct {
	Name string
	URL  string
}

// MinistryList extracts ministry names and page URLs from the listing.
func MinistryList(html string, baseURL string) ([]MinistryLink, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	var links []MinistryLink
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		name := cleanText(a.Text())
		if name == "" {
			return
		}
		href, _ := a.Attr("href")
		links = append(links, MinistryLink{
			Name: name,
			URL:  ResolveURL(baseURL, href),
		})
	})

	if len(links) == 0 {
		return nil, fmt.Errorf("no ministry entries found")
	}
	return links, nil
}
