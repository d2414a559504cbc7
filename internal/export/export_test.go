package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openkenya/ecitizen-crawler/internal/directory"
	"github.com/openkenya/ecitizen-crawler/internal/graph"
	"github.com/openkenya/ecitizen-crawler/internal/pipeline"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func sampleGraph() *graph.Graph {
	return &graph.Graph{
		Ministries: []directory.Ministry{{
			MinistryID:              "aaaaaaaaaaaa",
			Name:                    "Ministry of Health",
			Description:             strPtr("Health policy."),
			ReportedAgencyCount:     intPtr(1),
			ObservedAgencyCount:     1,
			ObservedServiceCount:    1,
			ObservedDepartmentCount: 1,
			MinistryURL:             "https://example.test/ministries/moh",
		}},
		Departments: []directory.Department{{
			DepartmentID:         "bbbbbbbbbbbb",
			MinistryID:           "aaaaaaaaaaaa",
			Name:                 "Medical Services",
			ObservedAgencyCount:  1,
			ObservedServiceCount: 1,
		}},
		Agencies: []directory.Agency{{
			AgencyID:             "cccccccccccc",
			AgencyNameHash:       "dddddddddddd",
			MinistryID:           "aaaaaaaaaaaa",
			DepartmentID:         "bbbbbbbbbbbb",
			Name:                 "Kenyatta National Hospital",
			ObservedServiceCount: 1,
		}},
		Services: []directory.Service{{
			ServiceID:    "eeeeeeeeeeee",
			AgencyID:     "cccccccccccc",
			DepartmentID: "bbbbbbbbbbbb",
			MinistryID:   "aaaaaaaaaaaa",
			Name:         "Book Appointment",
			ServiceURL:   "https://example.test/services/book",
		}},
		FAQs: []directory.FAQ{{
			FAQID:    "ffffffffffff",
			Question: "How do I sign up?",
			Answer:   "Use the registration page.",
		}},
	}
}

func TestWriteDatasetProducesAllFiles(t *testing.T) {
	dir := t.TempDir()
	written, err := WriteDataset(dir, sampleGraph())
	require.NoError(t, err)
	require.Len(t, written, 10, "csv and json per entity type")

	for _, name := range []string{"ministries", "departments", "agencies", "services", "faqs"} {
		require.FileExists(t, filepath.Join(dir, name+".csv"))
		require.FileExists(t, filepath.Join(dir, name+".json"))
	}
}

func TestCSVColumnsAndNullRendering(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteDataset(dir, sampleGraph())
	require.NoError(t, err)

	f, err := os.Open(filepath.Join(dir, "ministries.csv"))
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.Equal(t, ministryHeader, rows[0])

	row := rows[1]
	require.Equal(t, "aaaaaaaaaaaa", row[0])
	require.Equal(t, "1", row[3], "reported agency count")
	require.Equal(t, "", row[5], "absent reported service count stays empty, not zero")
	require.Equal(t, "1", row[6], "observed service count")
}

func TestJSONMatchesCSVRecords(t *testing.T) {
	dir := t.TempDir()
	_, err := WriteDataset(dir, sampleGraph())
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "agencies.json"))
	require.NoError(t, err)

	var agencies []directory.Agency
	require.NoError(t, json.Unmarshal(data, &agencies))
	require.Len(t, agencies, 1)
	require.Equal(t, "cccccccccccc", agencies[0].AgencyID)
	require.Nil(t, agencies[0].Description, "unmatched placement keeps null metadata")
}

func TestWriteInsightsRendersMarkdownSummary(t *testing.T) {
	dir := t.TempDir()
	started := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	report := &pipeline.RunReport{
		RunID:      "run-123",
		Status:     pipeline.StatusPartial,
		StartedAt:  started,
		FinishedAt: started.Add(42 * time.Second),
		Counts: map[string]int{
			"ministries": 21, "departments": 113, "agencies": 240,
			"services": 1180, "faqs": 12,
		},
		Insights: map[string]int{
			"agencies_missing_directory_metadata": 3,
			"departments_without_agencies":        1,
			"agencies_without_services":           5,
		},
		Findings: []graph.Finding{{
			Severity: graph.SeverityWarning,
			Kind:     graph.KindCountDiscrepancy,
			Entity:   "ministry",
			EntityID: "aaaaaaaaaaaa",
			Detail:   "reported 7 services, observed 2",
			Delta:    5,
		}},
		Failures: []directory.Failure{{
			Phase:      "services",
			Key:        "ministries/aaaaaaaaaaaa/services",
			Error:      "status 404",
			RecordedAt: started.Add(10 * time.Second),
		}},
	}

	path, err := WriteInsights(dir, report)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "insights.md"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	require.Contains(t, out, "# eCitizen Directory Crawl")
	require.Contains(t, out, "`run-123`")
	require.Contains(t, out, "partial")
	require.Contains(t, out, "## Dataset Counts")
	require.Contains(t, out, "1180")
	require.Contains(t, out, "agencies_without_services")
	require.Contains(t, out, "count_discrepancy")
	require.Contains(t, out, "status 404")
}

func TestWriteInsightsWithCleanRun(t *testing.T) {
	dir := t.TempDir()
	report := &pipeline.RunReport{
		RunID:      "run-456",
		Status:     pipeline.StatusSuccess,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
		Counts:     map[string]int{"ministries": 1},
		Insights:   map[string]int{},
	}

	path, err := WriteInsights(dir, report)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	require.Contains(t, out, "No validation findings.")
	require.Contains(t, out, "No failed pages.")
}

type memoryBlobStore struct {
	objects map[string][]byte
}

func (s *memoryBlobStore) PutObject(_ context.Context, path string, _ string, data []byte) (string, error) {
	s.objects[path] = append([]byte(nil), data...)
	return "mem://" + path, nil
}

func TestMirrorUploadsEveryFile(t *testing.T) {
	dir := t.TempDir()
	written, err := WriteDataset(dir, sampleGraph())
	require.NoError(t, err)

	store := &memoryBlobStore{objects: make(map[string][]byte)}
	uris, err := Mirror(context.Background(), store, "datasets/run-1", written)
	require.NoError(t, err)
	require.Len(t, uris, len(written))
	require.Contains(t, store.objects, "datasets/run-1/ministries.csv")
	require.Contains(t, store.objects, "datasets/run-1/faqs.json")
}
