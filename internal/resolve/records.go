package resolve

import (
	"github.com/openkenya/ecitizen-crawler/internal/directory"
	"github.com/openkenya/ecitizen-crawler/internal/extract"
	"github.com/openkenya/ecitizen-crawler/internal/ids"
)

// nullable maps an empty extraction result to an absent field. Absence
// means "the source had no value", which must stay distinguishable from an
// empty string.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// BuildFAQs converts extracted question/answer pairs into FAQ records,
// dropping duplicates and pairs whose identifier normalizes to nothing.
func BuildFAQs(items []extract.FAQItem) []directory.FAQ {
	seen := make(map[string]struct{}, len(items))
	out := make([]directory.FAQ, 0, len(items))
	for _, item := range items {
		id := ids.StableID(item.Question, item.Answer)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, directory.FAQ{
			FAQID:    id,
			Question: item.Question,
			Answer:   item.Answer,
		})
	}
	return out
}

// BuildMinistries seeds ministry records from the national listing. Counts
// and description stay unset until the per-ministry page is processed.
func BuildMinistries(links []extract.MinistryLink) []directory.Ministry {
	seen := make(map[string]struct{}, len(links))
	out := make([]directory.Ministry, 0, len(links))
	for _, link := range links {
		id := ids.StableID(link.Name)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, directory.Ministry{
			MinistryID:  id,
			Name:        link.Name,
			MinistryURL: link.URL,
		})
	}
	return out
}

// SeedIndex loads global-directory agency cards into the join index and
// returns how many new entries were stored.
func SeedIndex(idx *Index, cards []extract.AgencyCard) int {
	stored := 0
	for _, card := range cards {
		nameHash := ids.StableID(card.Name)
		if nameHash == "" {
			continue
		}
		if idx.Put(nameHash, AgencyMeta{
			Name:        card.Name,
			Description: card.Description,
			LogoURL:     card.LogoURL,
			AgencyURL:   card.AgencyURL,
		}) {
			stored++
		}
	}
	return stored
}

// BuildPlacements resolves a ministry's department panel into department
// records and placement-scoped agency records, backfilling agency metadata
// from the phase-2 index by name hash. A placement with no directory match
// keeps null metadata: knowing where an agency appears in the hierarchy
// takes priority over metadata completeness.
func BuildPlacements(
	ministryID string,
	blocks []extract.DepartmentBlock,
	idx *Index,
) ([]directory.Department, []directory.Agency) {
	departments := make([]directory.Department, 0, len(blocks))
	var agencies []directory.Agency

	for _, block := range blocks {
		departmentID := ids.StableID(ministryID, block.Name)
		if departmentID == "" {
			continue
		}

		for _, link := range block.Agencies {
			agencyID := ids.StableID(ministryID, departmentID, link.Name)
			if agencyID == "" {
				continue
			}
			nameHash := ids.StableID(link.Name)

			agency := directory.Agency{
				AgencyID:       agencyID,
				AgencyNameHash: nameHash,
				MinistryID:     ministryID,
				DepartmentID:   departmentID,
				Name:           link.Name,
				PlacementURL:   link.PlacementURL,
			}
			if meta, ok := idx.Get(nameHash); ok {
				agency.Description = nullable(meta.Description)
				agency.LogoURL = nullable(meta.LogoURL)
				agency.AgencyURL = nullable(meta.AgencyURL)
			}
			agencies = append(agencies, agency)
		}

		departments = append(departments, directory.Department{
			DepartmentID:           departmentID,
			MinistryID:             ministryID,
			Name:                   block.Name,
			MinistryDepartmentsURL: block.DepartmentsURL,
		})
	}
	return departments, agencies
}

// BuildServices resolves a placement's service listing into fully scoped
// service records. Off-platform URLs pass through verbatim.
func BuildServices(
	ministryID, departmentID, agencyID string,
	links []extract.ServiceLink,
) []directory.Service {
	seen := make(map[string]struct{}, len(links))
	out := make([]directory.Service, 0, len(links))
	for _, link := range links {
		id := ids.StableID(ministryID, departmentID, agencyID, link.Name)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, directory.Service{
			ServiceID:    id,
			AgencyID:     agencyID,
			DepartmentID: departmentID,
			MinistryID:   ministryID,
			Name:         link.Name,
			ServiceURL:   link.URL,
		})
	}
	return out
}
