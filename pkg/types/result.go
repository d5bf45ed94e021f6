package types

// SubmitOutcome is the result of a single add-endpoint call
type SubmitOutcome string

const (
	OutcomeSubmitted SubmitOutcome = "submitted"
	OutcomeTimeout   SubmitOutcome = "timeout"
	OutcomeFailed    SubmitOutcome = "failed"
	OutcomeSkipped   SubmitOutcome = "skipped"
)

// Result summarises one pipeline invocation
type Result struct {
	// Extraction
	Extracted int // Candidate URLs found in the text
	Accepted  int // Candidates that passed the filter chain

	// Filtering
	Rejected map[RejectReason]int

	// Batching
	Pending int  // URLs still waiting in the batch after this call
	Flushed bool // Whether a submission was attempted

	// Submission
	Submitted    int // URLs in the flushed batch
	TimedOut     bool
	SubmissionID string // Empty when nothing was flushed
}

// NewResult returns a Result with an initialised rejection map
func NewResult() *Result {
	return &Result{Rejected: make(map[RejectReason]int)}
}

// TotalRejected sums rejections across all reasons
func (r *Result) TotalRejected() int {
	total := 0
	for _, n := range r.Rejected {
		total += n
	}
	return total
}
