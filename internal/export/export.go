// Package export writes the finalized entity graph as CSV and JSON datasets.
// Both formats carry identical records; columns follow the entity field
// order so downstream consumers can rely on a stable layout.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/openkenya/ecitizen-crawler/internal/graph"
	"github.com/openkenya/ecitizen-crawler/internal/pipeline"
)

// WriteDataset writes one CSV and one JSON file per entity type under dir
// and returns the paths of every file written.
func WriteDataset(dir string, g *graph.Graph) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}

	var written []string
	write := func(name string, header []string, rows [][]string, records any) error {
		csvPath := filepath.Join(dir, name+".csv")
		if err := writeCSV(csvPath, header, rows); err != nil {
			return err
		}
		jsonPath := filepath.Join(dir, name+".json")
		if err := writeJSON(jsonPath, records); err != nil {
			return err
		}
		written = append(written, csvPath, jsonPath)
		return nil
	}

	if err := write("ministries", ministryHeader, ministryRows(g), g.Ministries); err != nil {
		return nil, err
	}
	if err := write("departments", departmentHeader, departmentRows(g), g.Departments); err != nil {
		return nil, err
	}
	if err := write("agencies", agencyHeader, agencyRows(g), g.Agencies); err != nil {
		return nil, err
	}
	if err := write("services", serviceHeader, serviceRows(g), g.Services); err != nil {
		return nil, err
	}
	if err := write("faqs", faqHeader, faqRows(g), g.FAQs); err != nil {
		return nil, err
	}
	return written, nil
}

// WriteReport writes the run report next to the dataset files and returns
// its path.
func WriteReport(dir string, report *pipeline.RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}
	path := filepath.Join(dir, "run_report.json")
	if err := writeJSON(path, report); err != nil {
		return "", err
	}
	return path, nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write rows %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, records any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// optStr renders an absent string field as an empty CSV cell.
func optStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// optInt renders an absent count as an empty CSV cell, keeping it
// distinguishable from an observed zero.
func optInt(n *int) string {
	if n == nil {
		return ""
	}
	return strconv.Itoa(*n)
}

var ministryHeader = []string{
	"ministry_id", "ministry_name", "ministry_description",
	"reported_agency_count", "observed_agency_count",
	"reported_service_count", "observed_service_count",
	"observed_department_count", "ministry_url",
}

func ministryRows(g *graph.Graph) [][]string {
	rows := make([][]string, 0, len(g.Ministries))
	for _, m := range g.Ministries {
		rows = append(rows, []string{
			m.MinistryID, m.Name, optStr(m.Description),
			optInt(m.ReportedAgencyCount), strconv.Itoa(m.ObservedAgencyCount),
			optInt(m.ReportedServiceCount), strconv.Itoa(m.ObservedServiceCount),
			strconv.Itoa(m.ObservedDepartmentCount), m.MinistryURL,
		})
	}
	return rows
}

var departmentHeader = []string{
	"department_id", "ministry_id", "department_name",
	"observed_agency_count", "observed_service_count",
	"ministry_departments_url",
}

func departmentRows(g *graph.Graph) [][]string {
	rows := make([][]string, 0, len(g.Departments))
	for _, d := range g.Departments {
		rows = append(rows, []string{
			d.DepartmentID, d.MinistryID, d.Name,
			strconv.Itoa(d.ObservedAgencyCount), strconv.Itoa(d.ObservedServiceCount),
			d.MinistryDepartmentsURL,
		})
	}
	return rows
}

var agencyHeader = []string{
	"agency_id", "agency_name_hash", "ministry_id", "department_id",
	"agency_name", "agency_description", "logo_url", "agency_url",
	"observed_service_count", "ministry_departments_agencies_url",
}

func agencyRows(g *graph.Graph) [][]string {
	rows := make([][]string, 0, len(g.Agencies))
	for _, a := range g.Agencies {
		rows = append(rows, []string{
			a.AgencyID, a.AgencyNameHash, a.MinistryID, a.DepartmentID,
			a.Name, optStr(a.Description), optStr(a.LogoURL), optStr(a.AgencyURL),
			strconv.Itoa(a.ObservedServiceCount), a.PlacementURL,
		})
	}
	return rows
}

var serviceHeader = []string{
	"service_id", "agency_id", "department_id", "ministry_id",
	"service_name", "service_url", "service_description", "requirements",
}

func serviceRows(g *graph.Graph) [][]string {
	rows := make([][]string, 0, len(g.Services))
	for _, s := range g.Services {
		rows = append(rows, []string{
			s.ServiceID, s.AgencyID, s.DepartmentID, s.MinistryID,
			s.Name, s.ServiceURL, optStr(s.Description), optStr(s.Requirements),
		})
	}
	return rows
}

var faqHeader = []string{"faq_id", "question", "answer"}

func faqRows(g *graph.Graph) [][]string {
	rows := make([][]string, 0, len(g.FAQs))
	for _, f := range g.FAQs {
		rows = append(rows, []string{f.FAQID, f.Question, f.Answer})
	}
	return rows
}
