package ingest

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed or out-of-bound input. Nothing was persisted.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid summary: " + strings.Join(e.Problems, "; ")
}

// Rejection reasons.
const (
	ReasonEmptySession      = "empty_session"
	ReasonTooShort          = "too_short"
	ReasonImplausibleRate   = "implausible_rate"
	ReasonCoverageOverclaim = "coverage_overclaim"
)

// RejectionError reports a well-formed summary refused by the anti-abuse
// gate. Nothing was persisted.
type RejectionError struct {
	Reason string
	Detail string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("rejected (%s): %s", e.Reason, e.Detail)
}
