// Package main provides the entry point for the comicscan CLI.
//
// comicscan crawls a comic article, filters the content images, extracts
// per-image facts through a vision model, and renders a summary report
// with suspicion and cost accounting.
//
// Usage:
//
//	comicscan scan <article-url>
//	comicscan scan --episodes 5 --title "義母の一言" <article-url>
//
// See --help for all available options.
package main

// main is the entry point for comicscan.
func main() {
	Execute()
}
