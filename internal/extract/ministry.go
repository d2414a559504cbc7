package extract

import (
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// MinistryOverview carries the platform-reported counts and description
// from a ministry page. Counts are nil when the page omits them.
type MinistryOverview struct {
	ReportedAgencyCount  *int
	ReportedServiceCount *int
	Description          string
}

// Overview extracts the ministry overview section. The reported agency
// count sits in the first dd tag, the reported service count in the second,
// and the description in the article tag.
func Overview(html string) (MinistryOverview, error) {
	doc, err := parse(html)
	if err != nil {
		return MinistryOverview{}, err
	}

	var out MinistryOverview
	dd := doc.Find("dd")
	if dd.Length() > 0 {
		out.ReportedAgencyCount = parseInt(dd.Eq(0).Text())
	}
	if dd.Length() > 1 {
		out.ReportedServiceCount = parseInt(dd.Eq(1).Text())
	}
	out.Description = cleanText(doc.Find("article").First().Text())
	return out, nil
}

// AgencyLink is an agency anchor inside a department block; its href is the
// placement-scoped service listing URL.
type AgencyLink struct {
	Name         string
	PlacementURL string
}

// DepartmentBlock is one department group from the ministry's departments
// and agencies panel.
type DepartmentBlock struct {
	Name           string
	DepartmentsURL string
	Agencies       []AgencyLink
}

// DepartmentPanel extracts department blocks from the ministry page. The
// panel is a ul with role=listbox whose direct div children each hold a
// span (the department name) and a nested list of agency anchors. An empty
// panel yields an empty slice, not an error: some ministries list no
// departments.
func DepartmentPanel(html string, ministryURL string) ([]DepartmentBlock, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	root := doc.Find(`ul[role="listbox"]`).First()
	if root.Length() == 0 {
		return nil, nil
	}

	var blocks []DepartmentBlock
	root.ChildrenFiltered("div").Each(func(_ int, block *goquery.Selection) {
		name := cleanText(block.Find("span").First().Text())
		if name == "" {
			return
		}

		var agencies []AgencyLink
		block.Find("ul a[href]").Each(func(_ int, a *goquery.Selection) {
			agencyName := cleanText(a.Text())
			if agencyName == "" {
				return
			}
			href, _ := a.Attr("href")
			agencies = append(agencies, AgencyLink{
				Name:         agencyName,
				PlacementURL: ResolveURL(ministryURL, href),
			})
		})

		blocks = append(blocks, DepartmentBlock{
			Name:           name,
			DepartmentsURL: departmentURL(block, ministryURL),
			Agencies:       agencies,
		})
	})
	return blocks, nil
}

// departmentURL rebuilds the ministry URL scoped to the department via its
// query parameter, falling back to the ministry URL when the block carries
// no department-scoped link.
func departmentURL(block *goquery.Selection, ministryURL string) string {
	a := block.Find("ul a[href]").First()
	if a.Length() == 0 {
		return ministryURL
	}
	href, _ := a.Attr("href")
	parsed, err := url.Parse(ResolveURL(ministryURL, href))
	if err != nil {
		return ministryURL
	}
	dept := parsed.Query().Get("department")
	if dept == "" {
		return ministryURL
	}

	scoped, err := url.Parse(ministryURL)
	if err != nil {
		return ministryURL
	}
	q := scoped.Query()
	q.Set("department", dept)
	scoped.RawQuery = q.Encode()
	return scoped.String()
}

// ServiceLink is one service anchor from a placement's service listing.
type ServiceLink struct {
	Name string
	URL  string
}

// ServiceList extracts service links. Hrefs may point off-platform; they
// are preserved verbatim after resolution, with no internal/external flag.
func ServiceList(html string, baseURL string) ([]ServiceLink, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	var links []ServiceLink
	doc.Find("a").Each(func(_ int, a *goquery.Selection) {
		name := cleanText(a.Text())
		if name == "" {
			return
		}
		href, _ := a.Attr("href")
		links = append(links, ServiceLink{
			Name: name,
			URL:  ResolveURL(baseURL, href),
		})
	})
	return links, nil
}
