// Package types provides shared type definitions for the link archiver.
//
// This package defines the domain types that flow through the submission
// pipeline, from raw text extraction to the authenticated batch submission.
//
// # Core Types
//
// Link is a raw target string found in Markdown inline link syntax. It has
// already been sanitized (truncated at the first literal space) but not yet
// validated:
//
//	link := types.Link("https://example.com/page")
//
// CandidateURL is a Link that parsed into a well-formed absolute URL:
//
//	candidate := types.CandidateURL{
//	    Raw: "https://example.com/page",
//	    URL: parsed,
//	}
//
// # Fingerprints
//
// Fingerprint is the SHA-256 digest of the sanitized link string. It keys the
// dedup cache and the persisted fingerprint table:
//
//	fp := types.NewFingerprint(candidate.Raw)
//	fmt.Println(fp) // standard base64
//
// # Results
//
// Result summarises a single pipeline invocation:
//
//	res, err := p.ArchiveText(ctx, text, true)
//	fmt.Printf("%d accepted, %d submitted\n", res.Accepted, res.Submitted)
//
// # Errors
//
// Pipeline errors are sentinels wrapped with fmt.Errorf and tested with
// errors.Is:
//
//	if errors.Is(err, types.ErrConfigInvalid) {
//	    // fix settings before retrying
//	}
//
// Submission timeouts are never returned as errors; they set Result.TimedOut.
package types
