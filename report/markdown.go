package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/use-agent/bughunter/models"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{baseWriter: newBaseWriter(output)}
}

var severityHeaders = []struct {
	level  models.Severity
	header string
}{
	{models.SeverityCritical, "🔴 Critical"},
	{models.SeverityHigh, "🟠 High"},
	{models.SeverityMedium, "🟡 Medium"},
	{models.SeverityLow, "🔵 Low"},
	{models.SeverityUnknown, "⚪ Unknown"},
}

// Write implements Writer.
func (w *MarkdownWriter) Write(reports []Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("BugHunter Report")
	md.PlainText("")

	for _, r := range reports {
		w.writeReport(md, r)
	}

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by BugHunter on %s*", time.Now().UTC().Format("2006-01-02 15:04:05 MST"))

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeReport(md *markdown.Markdown, r Report) {
	md.H2(r.URL)
	md.PlainText("")

	if r.Failed() {
		msg := "unknown error"
		if r.Error != nil {
			msg = r.Error.Code + ": " + r.Error.Message
		}
		md.Cautionf("Scan failed. %s", msg)
		md.PlainText("")
		return
	}

	res := r.Result
	w.writePageInfo(md, res)
	w.writeSummary(md, res.Summary)
	if r.Analysis != nil {
		w.writeAnalysis(md, r.Analysis)
	}
	w.writeBugs(md, res.Bugs)
}

func (w *MarkdownWriter) writePageInfo(md *markdown.Markdown, res *models.ScanResult) {
	desc := "-"
	if res.PageInfo.MetaDescription != nil {
		desc = cell(*res.PageInfo.MetaDescription, 80)
	}
	screenshot := "-"
	if res.Screenshot != "" {
		screenshot = "`" + res.Screenshot + "`"
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Scanned", res.Timestamp.UTC().Format("2006-01-02 15:04:05 MST")},
			{"Duration", (time.Duration(res.DurationMs) * time.Millisecond).String()},
			{"Title", cell(orDash(res.PageInfo.Title), 80)},
			{"Meta Description", desc},
			{"Has H1", strconv.FormatBool(res.PageInfo.HasH1)},
			{"Images / Links / Forms", fmt.Sprintf("%d / %d / %d",
				res.PageInfo.ImageCount, res.PageInfo.LinkCount, res.PageInfo.FormCount)},
			{"Screenshot", screenshot},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s models.Summary) {
	md.H3("Summary")
	md.PlainText("")

	rows := make([][]string, 0, len(severityHeaders)+1)
	for _, sev := range severityHeaders {
		n := s.Count(sev.level)
		if sev.level == models.SeverityUnknown && n == 0 {
			continue
		}
		rows = append(rows, []string{sev.header, strconv.Itoa(n)})
	}
	rows = append(rows, []string{"**Total**", "**" + strconv.Itoa(s.TotalBugs) + "**"})
	md.Table(markdown.TableSet{Header: []string{"Severity", "Count"}, Rows: rows})
	md.PlainText("")

	if s.TotalBugs > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

// writePieChart charts bugs by category in a fixed category order.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s models.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Bugs by Category"),
		piechart.WithShowData(true),
	)
	for _, c := range models.Categories() {
		if n := s.ByCategory[string(c)]; n > 0 {
			chart.LabelAndIntValue(string(c), uint64(n))
		}
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s models.Summary) {
	critical := s.Count(models.SeverityCritical)
	high := s.Count(models.SeverityHigh)
	medium := s.Count(models.SeverityMedium)

	switch {
	case critical > 0:
		md.Cautionf("%d critical bug(s) break the page for users and need immediate attention.", critical)
	case high > 0:
		md.Warningf("%d high severity bug(s) should be fixed soon.", high)
	case medium > 0:
		md.Importantf("%d medium severity bug(s) affect quality or accessibility.", medium)
	case s.TotalBugs > 0:
		md.Note("Only low severity bugs detected.")
	default:
		md.Tip("No bugs detected.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeAnalysis(md *markdown.Markdown, a *models.Analysis) {
	md.H3("AI Analysis")
	md.PlainText("")
	md.PlainTextf("**Quality score:** %d/100  ", a.QualityScore)
	md.PlainTextf("**Estimated fix time:** %s", orDash(a.EstimatedFixTime))
	md.PlainText("")
	if a.OverallAssessment != "" {
		md.PlainText(a.OverallAssessment)
		md.PlainText("")
	}
	if len(a.QuickWins) > 0 {
		md.PlainText("**Quick wins**")
		md.PlainText("")
		md.BulletList(a.QuickWins...)
		md.PlainText("")
	}
	if a.Error != "" {
		md.Note(a.Error)
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeBugs(md *markdown.Markdown, bugs []models.Bug) {
	md.H3("Bugs")
	md.PlainText("")

	if len(bugs) == 0 {
		md.PlainText("No bugs detected.")
		md.PlainText("")
		return
	}

	for _, sev := range severityHeaders {
		var rows [][]string
		for _, b := range bugs {
			if keyOr(string(b.Severity)) != string(sev.level) {
				continue
			}
			rows = append(rows, []string{
				"`" + string(b.Type) + "`",
				string(b.Category),
				cell(b.Message, 80),
				cell(orDash(b.Location), 50),
				cell(orDash(models.Classify(b.Type).Recommendation), 60),
			})
		}
		if len(rows) == 0 {
			continue
		}

		md.H4(sev.header)
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Type", "Category", "Message", "Location", "Recommendation"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// cell flattens s into one table cell, truncated to maxLen runes.
func cell(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ReplaceAll(s, "|", `\|`)
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
