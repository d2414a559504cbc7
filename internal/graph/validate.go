package graph

import "fmt"

// Severity classifies a validation finding. Fatal findings mean the graph
// must not be published; warnings are reported and kept.
type Severity string

// Finding severities.
const (
	SeverityFatal   Severity = "fatal"
	SeverityWarning Severity = "warning"
)

// Finding kinds.
const (
	KindDuplicateID      = "duplicate_id"
	KindOrphanReference  = "orphan_reference"
	KindHashCollision    = "hash_collision"
	KindCountDiscrepancy = "count_discrepancy"
)

// Finding is one structured validation result.
type Finding struct {
	Severity Severity `json:"severity"`
	Kind     string   `json:"kind"`
	Entity   string   `json:"entity"`
	EntityID string   `json:"entity_id"`
	Detail   string   `json:"detail"`
	Delta    int      `json:"delta,omitempty"`
}

// HasFatal reports whether any finding is fatal.
func HasFatal(findings []Finding) bool {
	for _, f := range findings {
		if f.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// Validate checks identifier uniqueness, referential completeness, and
// reported-vs-observed count discrepancies. Discrepancies with magnitude
// above tolerance are warnings: the dataset stores observed counts as
// ground truth and reported counts as provided, unreconciled.
func Validate(g *Graph, tolerance int) []Finding {
	var findings []Finding
	findings = append(findings, checkUniqueness(g)...)
	findings = append(findings, checkReferences(g)...)
	findings = append(findings, checkDiscrepancies(g, tolerance)...)
	return findings
}

func checkUniqueness(g *Graph) []Finding {
	var findings []Finding
	dup := func(entity, id string) Finding {
		return Finding{
			Severity: SeverityFatal,
			Kind:     KindDuplicateID,
			Entity:   entity,
			EntityID: id,
			Detail:   "identifier appears more than once in the collection",
		}
	}

	seen := make(map[string]struct{})
	for _, m := range g.Ministries {
		if _, ok := seen[m.MinistryID]; ok {
			findings = append(findings, dup("ministry", m.MinistryID))
		}
		seen[m.MinistryID] = struct{}{}
	}
	seen = make(map[string]struct{})
	for _, d := range g.Departments {
		if _, ok := seen[d.DepartmentID]; ok {
			findings = append(findings, dup("department", d.DepartmentID))
		}
		seen[d.DepartmentID] = struct{}{}
	}
	seen = make(map[string]struct{})
	for _, a := range g.Agencies {
		if _, ok := seen[a.AgencyID]; ok {
			findings = append(findings, dup("agency", a.AgencyID))
		}
		seen[a.AgencyID] = struct{}{}
	}
	seen = make(map[string]struct{})
	for _, s := range g.Services {
		if _, ok := seen[s.ServiceID]; ok {
			findings = append(findings, dup("service", s.ServiceID))
		}
		seen[s.ServiceID] = struct{}{}
	}
	seen = make(map[string]struct{})
	for _, f := range g.FAQs {
		if _, ok := seen[f.FAQID]; ok {
			findings = append(findings, dup("faq", f.FAQID))
		}
		seen[f.FAQID] = struct{}{}
	}
	return findings
}

func checkReferences(g *Graph) []Finding {
	ministries := make(map[string]struct{}, len(g.Ministries))
	for _, m := range g.Ministries {
		ministries[m.MinistryID] = struct{}{}
	}
	departments := make(map[string]struct{}, len(g.Departments))
	for _, d := range g.Departments {
		departments[d.DepartmentID] = struct{}{}
	}
	agencies := make(map[string]struct{}, len(g.Agencies))
	for _, a := range g.Agencies {
		agencies[a.AgencyID] = struct{}{}
	}

	var findings []Finding
	orphan := func(entity, id, detail string) Finding {
		return Finding{
			Severity: SeverityFatal,
			Kind:     KindOrphanReference,
			Entity:   entity,
			EntityID: id,
			Detail:   detail,
		}
	}

	for _, d := range g.Departments {
		if _, ok := ministries[d.MinistryID]; !ok {
			findings = append(findings, orphan("department", d.DepartmentID,
				fmt.Sprintf("ministry_id %q does not resolve", d.MinistryID)))
		}
	}
	for _, a := range g.Agencies {
		if _, ok := ministries[a.MinistryID]; !ok {
			findings = append(findings, orphan("agency", a.AgencyID,
				fmt.Sprintf("ministry_id %q does not resolve", a.MinistryID)))
		}
		if _, ok := departments[a.DepartmentID]; !ok {
			findings = append(findings, orphan("agency", a.AgencyID,
				fmt.Sprintf("department_id %q does not resolve", a.DepartmentID)))
		}
	}
	for _, s := range g.Services {
		if _, ok := ministries[s.MinistryID]; !ok {
			findings = append(findings, orphan("service", s.ServiceID,
				fmt.Sprintf("ministry_id %q does not resolve", s.MinistryID)))
		}
		if _, ok := departments[s.DepartmentID]; !ok {
			findings = append(findings, orphan("service", s.ServiceID,
				fmt.Sprintf("department_id %q does not resolve", s.DepartmentID)))
		}
		if _, ok := agencies[s.AgencyID]; !ok {
			findings = append(findings, orphan("service", s.ServiceID,
				fmt.Sprintf("agency_id %q does not resolve", s.AgencyID)))
		}
	}
	return findings
}

func checkDiscrepancies(g *Graph, tolerance int) []Finding {
	var findings []Finding
	flag := func(id, what string, reported, observed int) {
		delta := reported - observed
		if delta < 0 {
			delta = -delta
		}
		if delta <= tolerance {
			return
		}
		findings = append(findings, Finding{
			Severity: SeverityWarning,
			Kind:     KindCountDiscrepancy,
			Entity:   "ministry",
			EntityID: id,
			Detail:   fmt.Sprintf("reported %d %s, observed %d", reported, what, observed),
			Delta:    delta,
		})
	}

	for _, m := range g.Ministries {
		if m.ReportedAgencyCount != nil {
			flag(m.MinistryID, "agencies", *m.ReportedAgencyCount, m.ObservedAgencyCount)
		}
		if m.ReportedServiceCount != nil {
			flag(m.MinistryID, "services", *m.ReportedServiceCount, m.ObservedServiceCount)
		}
	}
	return findings
}
