// Package main provides the bughunter CLI.
//
// BugHunter loads pages in a headless browser and reports JavaScript,
// network, content, accessibility, SEO and performance defects.
//
// Usage:
//
//	bughunter scan <url>...
//	bughunter serve
//
// See --help for all available options.
package main

func main() {
	Execute()
}
