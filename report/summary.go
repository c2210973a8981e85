package report

import "github.com/use-agent/bughunter/models"

// unknownKey groups bugs whose category or severity is empty.
const unknownKey = "unknown"

// Summarize counts bugs by category and by severity. It never reorders,
// deduplicates or mutates bugs, so the same input always yields an equal
// summary.
func Summarize(bugs []models.Bug) models.Summary {
	s := models.Summary{
		TotalBugs:  len(bugs),
		ByCategory: make(map[string]int),
		BySeverity: make(map[string]int),
	}
	for _, b := range bugs {
		s.ByCategory[keyOr(string(b.Category))]++
		s.BySeverity[keyOr(string(b.Severity))]++
	}
	return s
}

func keyOr(k string) string {
	if k == "" {
		return unknownKey
	}
	return k
}
