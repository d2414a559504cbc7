// Package graph materializes the final entity collections and validates
// the assembled graph for referential integrity.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
	"github.com/openkenya/ecitizen-crawler/internal/ids"
)

// Graph holds the materialized entity collections, sorted by identifier.
type Graph struct {
	Ministries  []directory.Ministry
	Departments []directory.Department
	Agencies    []directory.Agency
	Services    []directory.Service
	FAQs        []directory.FAQ
}

// Assembler accumulates entity records across phases. Records are merged by
// identifier: re-adding an identical record is a no-op (parse work may be
// repeated on resume), while two different records under one identifier is
// a hash collision surfaced as a fatal finding.
type Assembler struct {
	mu          sync.Mutex
	ministries  map[string]directory.Ministry
	departments map[string]directory.Department
	agencies    map[string]directory.Agency
	services    map[string]directory.Service
	faqs        map[string]directory.FAQ
	collisions  []Finding
}

// NewAssembler returns an empty Assembler.
func NewAssembler() *Assembler {
	return &Assembler{
		ministries:  make(map[string]directory.Ministry),
		departments: make(map[string]directory.Department),
		agencies:    make(map[string]directory.Agency),
		services:    make(map[string]directory.Service),
		faqs:        make(map[string]directory.FAQ),
	}
}

func (a *Assembler) collision(entity, id, have, got string) {
	a.collisions = append(a.collisions, Finding{
		Severity: SeverityFatal,
		Kind:     KindHashCollision,
		Entity:   entity,
		EntityID: id,
		Detail:   fmt.Sprintf("identifier already bound to %q, refusing to merge %q", have, got),
	})
}

// AddMinistry records a ministry seeded from the national listing.
func (a *Assembler) AddMinistry(m directory.Ministry) {
	if m.MinistryID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.ministries[m.MinistryID]; ok {
		if ids.Normalize(existing.Name) != ids.Normalize(m.Name) {
			a.collision("ministry", m.MinistryID, existing.Name, m.Name)
		}
		return
	}
	a.ministries[m.MinistryID] = m
}

// SetMinistryOverview backfills the description and platform-reported
// counts once the ministry's own page has been processed.
func (a *Assembler) SetMinistryOverview(ministryID string, description *string, reportedAgencies, reportedServices *int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.ministries[ministryID]
	if !ok {
		return
	}
	m.Description = description
	m.ReportedAgencyCount = reportedAgencies
	m.ReportedServiceCount = reportedServices
	a.ministries[ministryID] = m
}

// AddDepartment records a department placement.
func (a *Assembler) AddDepartment(d directory.Department) {
	if d.DepartmentID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.departments[d.DepartmentID]; ok {
		if ids.Normalize(existing.Name) != ids.Normalize(d.Name) || existing.MinistryID != d.MinistryID {
			a.collision("department", d.DepartmentID, existing.Name, d.Name)
		}
		return
	}
	a.departments[d.DepartmentID] = d
}

// AddAgency records a placement-scoped agency.
func (a *Assembler) AddAgency(ag directory.Agency) {
	if ag.AgencyID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.agencies[ag.AgencyID]; ok {
		if ids.Normalize(existing.Name) != ids.Normalize(ag.Name) ||
			existing.MinistryID != ag.MinistryID ||
			existing.DepartmentID != ag.DepartmentID {
			a.collision("agency", ag.AgencyID, existing.Name, ag.Name)
		}
		return
	}
	a.agencies[ag.AgencyID] = ag
}

// AddService records a fully scoped service.
func (a *Assembler) AddService(s directory.Service) {
	if s.ServiceID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.services[s.ServiceID]; ok {
		if ids.Normalize(existing.Name) != ids.Normalize(s.Name) || existing.AgencyID != s.AgencyID {
			a.collision("service", s.ServiceID, existing.Name, s.Name)
		}
		return
	}
	a.services[s.ServiceID] = s
}

// AddFAQ records a question/answer pair.
func (a *Assembler) AddFAQ(f directory.FAQ) {
	if f.FAQID == "" {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.faqs[f.FAQID]; ok {
		same := ids.Normalize(existing.Question) == ids.Normalize(f.Question) &&
			ids.Normalize(existing.Answer) == ids.Normalize(f.Answer)
		if !same {
			a.collision("faq", f.FAQID, existing.Question, f.Question)
		}
		return
	}
	a.faqs[f.FAQID] = f
}

// Collisions returns the fatal collision findings recorded during assembly.
func (a *Assembler) Collisions() []Finding {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Finding, len(a.collisions))
	copy(out, a.collisions)
	return out
}

// Finalize materializes the graph: observed counts are computed by counting
// child records (never by accumulating during traversal, which would
// double-count on retries) and every collection is sorted by identifier so
// output is independent of discovery order.
func (a *Assembler) Finalize() *Graph {
	a.mu.Lock()
	defer a.mu.Unlock()

	type counts struct{ departments, agencies, services int }
	perMinistry := make(map[string]*counts, len(a.ministries))
	for id := range a.ministries {
		perMinistry[id] = &counts{}
	}
	deptAgencies := make(map[string]int, len(a.departments))
	deptServices := make(map[string]int, len(a.departments))
	agencyServices := make(map[string]int, len(a.agencies))

	for _, d := range a.departments {
		if c, ok := perMinistry[d.MinistryID]; ok {
			c.departments++
		}
	}
	for _, ag := range a.agencies {
		if c, ok := perMinistry[ag.MinistryID]; ok {
			c.agencies++
		}
		deptAgencies[ag.DepartmentID]++
	}
	for _, s := range a.services {
		if c, ok := perMinistry[s.MinistryID]; ok {
			c.services++
		}
		deptServices[s.DepartmentID]++
		agencyServices[s.AgencyID]++
	}

	g := &Graph{
		Ministries:  make([]directory.Ministry, 0, len(a.ministries)),
		Departments: make([]directory.Department, 0, len(a.departments)),
		Agencies:    make([]directory.Agency, 0, len(a.agencies)),
		Services:    make([]directory.Service, 0, len(a.services)),
		FAQs:        make([]directory.FAQ, 0, len(a.faqs)),
	}

	for id, m := range a.ministries {
		c := perMinistry[id]
		m.ObservedDepartmentCount = c.departments
		m.ObservedAgencyCount = c.agencies
		m.ObservedServiceCount = c.services
		g.Ministries = append(g.Ministries, m)
	}
	for id, d := range a.departments {
		d.ObservedAgencyCount = deptAgencies[id]
		d.ObservedServiceCount = deptServices[id]
		g.Departments = append(g.Departments, d)
	}
	for id, ag := range a.agencies {
		ag.ObservedServiceCount = agencyServices[id]
		g.Agencies = append(g.Agencies, ag)
	}
	for _, s := range a.services {
		g.Services = append(g.Services, s)
	}
	for _, f := range a.faqs {
		g.FAQs = append(g.FAQs, f)
	}

	sort.Slice(g.Ministries, func(i, j int) bool { return g.Ministries[i].MinistryID < g.Ministries[j].MinistryID })
	sort.Slice(g.Departments, func(i, j int) bool { return g.Departments[i].DepartmentID < g.Departments[j].DepartmentID })
	sort.Slice(g.Agencies, func(i, j int) bool { return g.Agencies[i].AgencyID < g.Agencies[j].AgencyID })
	sort.Slice(g.Services, func(i, j int) bool { return g.Services[i].ServiceID < g.Services[j].ServiceID })
	sort.Slice(g.FAQs, func(i, j int) bool { return g.FAQs[i].FAQID < g.FAQs[j].FAQID })

	return g
}
