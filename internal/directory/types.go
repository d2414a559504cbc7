// Package directory defines the entity model and the boundary interfaces
// shared across the crawl pipeline.
package directory

// Ministry is a top-level entry in the government service directory.
// Reported counts come from the platform itself; observed counts are derived
// by counting materialized child records after all phases complete.
type Ministry struct {
	MinistryID              string  `json:"ministry_id"`
	Name                    string  `json:"ministry_name"`
	Description             *string `json:"ministry_description"`
	ReportedAgencyCount     *int    `json:"reported_agency_count"`
	ObservedAgencyCount     int     `json:"observed_agency_count"`
	ReportedServiceCount    *int    `json:"reported_service_count"`
	ObservedServiceCount    int     `json:"observed_service_count"`
	ObservedDepartmentCount int     `json:"observed_department_count"`
	MinistryURL             string  `json:"ministry_url"`
}

// Department groups agencies under a ministry. Department names are not
// globally unique, so the identifier is scoped to the owning ministry.
type Department struct {
	DepartmentID           string `json:"department_id"`
	MinistryID             string `json:"ministry_id"`
	Name                   string `json:"department_name"`
	ObservedAgencyCount    int    `json:"observed_agency_count"`
	ObservedServiceCount   int    `json:"observed_service_count"`
	MinistryDepartmentsURL string `json:"ministry_departments_url"`
}

// Agency carries two identifiers: AgencyNameHash joins independently
// collected directory metadata by name alone, while AgencyID is the
// placement-scoped identity (the same agency name may legitimately appear
// under several ministries or departments).
type Agency struct {
	AgencyID             string  `json:"agency_id"`
	AgencyNameHash       string  `json:"agency_name_hash"`
	MinistryID           string  `json:"ministry_id"`
	DepartmentID         string  `json:"department_id"`
	Name                 string  `json:"agency_name"`
	Description          *string `json:"agency_description"`
	LogoURL              *string `json:"logo_url"`
	AgencyURL            *string `json:"agency_url"`
	ObservedServiceCount int     `json:"observed_service_count"`
	PlacementURL         string  `json:"ministry_departments_agencies_url"`
}

// Service is a leaf record fully scoped by its ancestor identifiers.
// Description and Requirements are reserved and always null in this version.
type Service struct {
	ServiceID    string  `json:"service_id"`
	AgencyID     string  `json:"agency_id"`
	DepartmentID string  `json:"department_id"`
	MinistryID   string  `json:"ministry_id"`
	Name         string  `json:"service_name"`
	ServiceURL   string  `json:"service_url"`
	Description  *string `json:"service_description"`
	Requirements *string `json:"requirements"`
}

// FAQ is a flat entity with no hierarchy relation.
type FAQ struct {
	FAQID    string `json:"faq_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// PageKind declares which extraction recipe applies to a fetched page.
type PageKind string

// Page kinds understood by the extraction layer.
const (
	PageFAQ             PageKind = "faq"
	PageAgencyDirectory PageKind = "agency_directory"
	PageMinistryList    PageKind = "ministry_list"
	PageMinistry        PageKind = "ministry"
	PageServiceList     PageKind = "service_list"
)

// Target identifies one navigation destination. Key doubles as the artifact
// store address and is derived from the hierarchy position, so re-runs hit
// the cache instead of the network. ReadySelector is a structural condition
// on the rendered DOM that must hold before the page counts as loaded.
type Target struct {
	Key           string
	URL           string
	Kind          PageKind
	ReadySelector string
}
