// Package analysis grades persisted results and computes aggregate metrics
// over them. Grading never inspects the live pipeline; it works purely from
// decoded result-log records so a run can be analyzed long after it finished.
package analysis

// Assessment is the graded outcome for a single result.
type Assessment string

const (
	// AssessmentCorrect means the reply matched the item's correct answer.
	AssessmentCorrect Assessment = "correct"
	// AssessmentIncorrect means the reply matched a wrong answer.
	AssessmentIncorrect Assessment = "incorrect"
	// AssessmentUnknown means no answer could be extracted from the reply.
	// Unknown assessments are excluded from accuracy calculations.
	AssessmentUnknown Assessment = "unknown"
)
