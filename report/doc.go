// Package report aggregates scan bugs into summaries and renders scan
// outcomes for people and tools.
//
// Summarize is the pure aggregation step every scan ends with. The writers
// turn finished scans into JSON for tooling and Markdown for sharing.
package report
