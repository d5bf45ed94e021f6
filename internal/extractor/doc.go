// Package extractor finds hyperlink targets in document text.
//
// Only Markdown inline links are recognised:
//
//	See [the docs](https://example.com/docs) for details.
//
// yields the link "https://example.com/docs". Bare URLs, reference-style
// links and autolinks are ignored.
//
// # Sanitization
//
// Text pasted from web pages often carries a trailing title or stray words
// inside the parentheses. An unencoded space is never valid in a URL, so a
// target containing one is truncated at the first space:
//
//	[Go](https://go.dev some words)  ->  https://go.dev
//
// # Sequences
//
// Links and Candidates return iter.Seq values. They are lazy, finite and
// restartable: ranging twice over the same sequence scans the text twice.
//
//	ex := extractor.New(logger, m)
//	for c := range ex.Candidates(text) {
//	    fmt.Println(c.Host(), c.Raw)
//	}
//
// Targets that do not parse as absolute URLs with a scheme and host are
// logged at debug level, counted, and skipped. Extraction never fails.
//
// # HTML input
//
// HTML documents are converted to Markdown first:
//
//	markdown, err := extractor.ToMarkdown(html, extractor.FormatHTML)
package extractor
