package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/openkenya/ecitizen-crawler/internal/pipeline"
)

// WriteInsights renders the run report as a human-readable Markdown summary
// next to the dataset files and returns its path. The JSON report stays the
// machine-readable record; this file is for sharing.
func WriteInsights(dir string, report *pipeline.RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dataset dir: %w", err)
	}
	path := filepath.Join(dir, "insights.md")

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}

	md := markdown.NewMarkdown(f)
	writeRunSummary(md, report)
	writeCounts(md, report)
	writeInsightTallies(md, report)
	writeFindings(md, report)
	writeFailures(md, report)

	if err := md.Build(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("render %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func writeRunSummary(md *markdown.Markdown, report *pipeline.RunReport) {
	md.H1("eCitizen Directory Crawl")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run ID", "`" + report.RunID + "`"},
			{"Status", string(report.Status)},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Finished", report.FinishedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", report.FinishedAt.Sub(report.StartedAt).Round(time.Second).String()},
		},
	})
	md.PlainText("")
}

func writeCounts(md *markdown.Markdown, report *pipeline.RunReport) {
	md.H2("Dataset Counts")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Entity", "Count"},
		Rows: [][]string{
			{"Ministries", strconv.Itoa(report.Counts["ministries"])},
			{"Departments", strconv.Itoa(report.Counts["departments"])},
			{"Agencies", strconv.Itoa(report.Counts["agencies"])},
			{"Services", strconv.Itoa(report.Counts["services"])},
			{"FAQs", strconv.Itoa(report.Counts["faqs"])},
		},
	})
	md.PlainText("")
}

func writeInsightTallies(md *markdown.Markdown, report *pipeline.RunReport) {
	md.H2("Coverage Insights")
	md.PlainText("")

	keys := make([]string, 0, len(report.Insights))
	for k := range report.Insights {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(report.Insights[k])})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Insight", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeFindings(md *markdown.Markdown, report *pipeline.RunReport) {
	md.H2("Validation Findings")
	md.PlainText("")
	if len(report.Findings) == 0 {
		md.PlainText("No validation findings.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Findings))
	for _, f := range report.Findings {
		rows = append(rows, []string{
			string(f.Severity), f.Kind, f.Entity, f.EntityID, f.Detail,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Severity", "Kind", "Entity", "Entity ID", "Detail"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeFailures(md *markdown.Markdown, report *pipeline.RunReport) {
	md.H2("Page Failures")
	md.PlainText("")
	if len(report.Failures) == 0 {
		md.PlainText("No failed pages.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(report.Failures))
	for _, f := range report.Failures {
		rows = append(rows, []string{
			f.Phase, "`" + f.Key + "`", f.Error,
			f.RecordedAt.Format("2006-01-02 15:04:05 MST"),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Phase", "Key", "Error", "Recorded"},
		Rows:   rows,
	})
	md.PlainText("")
}
