package models

// AssignmentState is the effective lifecycle state of an assignment, derived
// from the presence of completion and sign-off evidence rather than read from
// a mutable column. Every screen, filter, and count must go through
// DeriveStatus so the displayed state can never drift from the evidence.
type AssignmentState string

const (
	StateNotStarted      AssignmentState = "NOT_STARTED"
	StateInProgress      AssignmentState = "IN_PROGRESS"
	StateAwaitingSignoff AssignmentState = "AWAITING_SIGNOFF"
	StateApproved        AssignmentState = "APPROVED"
)

// StateRank orders lifecycle states. The walk is strictly forward-only:
// NOT_STARTED < IN_PROGRESS < AWAITING_SIGNOFF < APPROVED.
func StateRank(s AssignmentState) int {
	switch s {
	case StateInProgress:
		return 1
	case StateAwaitingSignoff:
		return 2
	case StateApproved:
		return 3
	default:
		return 0
	}
}

// DeriveStatus computes the effective lifecycle state from an assignment and
// its child rows. A nil completion falls back to the stored enum, which only
// distinguishes ASSIGNED from IN_PROGRESS; once a completion exists the stored
// enum carries no authority.
func DeriveStatus(assignment *Assignment, completion *Completion, signoff *TrainerSignoff) AssignmentState {
	if completion == nil {
		if assignment != nil && assignment.Status == AssignmentStatusInProgress {
			return StateInProgress
		}
		return StateNotStarted
	}
	if signoff == nil {
		return StateAwaitingSignoff
	}
	return StateApproved
}

// LatestCompletion deterministically picks one completion when the data layer
// holds duplicates: the most recent completed_at wins, with ID as tiebreaker.
func LatestCompletion(completions []Completion) *Completion {
	if len(completions) == 0 {
		return nil
	}
	latest := completions[0]
	for _, c := range completions[1:] {
		if c.CompletedAt.After(latest.CompletedAt) ||
			(c.CompletedAt.Equal(latest.CompletedAt) && c.ID > latest.ID) {
			latest = c
		}
	}
	return &latest
}

// DeriveDetailState computes the effective state for a joined detail row by
// rebuilding the child rows from the outer-join markers and delegating to
// DeriveStatus, so there is exactly one derivation in the codebase.
func DeriveDetailState(d *AssignmentDetail) AssignmentState {
	if d == nil {
		return StateNotStarted
	}
	var completion *Completion
	if d.CompletionID != nil {
		completion = &Completion{ID: *d.CompletionID, AssignmentID: d.Assignment.ID}
		if d.CompletedAt != nil {
			completion.CompletedAt = *d.CompletedAt
		}
	}
	var signoff *TrainerSignoff
	if d.SignoffID != nil {
		signoff = &TrainerSignoff{ID: *d.SignoffID}
		if completion != nil {
			signoff.CompletionID = completion.ID
		}
	}
	return DeriveStatus(&d.Assignment, completion, signoff)
}
