package models

import "github.com/rotisserie/eris"

// ClaimStatus is the closed set of workflow states a claim can be in.
// The persisted value is always one of the four constants below; anything
// else coming back from the review service is rejected at the boundary.
type ClaimStatus string

const (
	// StatusInReview is the initial state. A claim stays here until the
	// automated review produces a verdict.
	StatusInReview ClaimStatus = "InReview"
	// StatusFlagged means the automated review was inconclusive and a human
	// insurer must decide.
	StatusFlagged ClaimStatus = "Flagged"
	// StatusApproved is terminal.
	StatusApproved ClaimStatus = "Approved"
	// StatusRejected is terminal.
	StatusRejected ClaimStatus = "Rejected"
)

// Actor identifies who is causing a status transition.
type Actor string

const (
	ActorAutoReview Actor = "auto-review"
	ActorInsurer    Actor = "insurer"
)

// Valid reports whether s is one of the known statuses.
func (s ClaimStatus) Valid() bool {
	switch s {
	case StatusInReview, StatusFlagged, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transition.
func (s ClaimStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseReviewLabel validates a label returned by the review service. Only
// Approved, Rejected and Flagged are acceptable verdicts; an unknown label is
// an error, never a status.
func ParseReviewLabel(label string) (ClaimStatus, error) {
	switch ClaimStatus(label) {
	case StatusApproved, StatusRejected, StatusFlagged:
		return ClaimStatus(label), nil
	}
	return "", eris.Errorf("models: unknown review label %q", label)
}

// CanTransition reports whether actor may move a claim from one status to
// another. The automated review moves InReview to any verdict; an insurer
// decides only Flagged claims, and only to a terminal state.
func CanTransition(from, to ClaimStatus, by Actor) bool {
	if from.Terminal() {
		return false
	}
	switch by {
	case ActorAutoReview:
		return from == StatusInReview &&
			(to == StatusApproved || to == StatusRejected || to == StatusFlagged)
	case ActorInsurer:
		return from == StatusFlagged &&
			(to == StatusApproved || to == StatusRejected)
	}
	return false
}

// DisplayStatus maps a persisted status to the label a given viewer sees.
// Claimants are never shown "Flagged"; both Flagged and InReview render as
// "In Review" on claimant-facing surfaces. Insurers see the true status.
// The mapping is a view concern only and is never written back to the store.
func DisplayStatus(s ClaimStatus, viewer Role) string {
	if viewer != RoleInsurer && (s == StatusFlagged || s == StatusInReview) {
		return "In Review"
	}
	if s == StatusInReview {
		return "In Review"
	}
	return string(s)
}
