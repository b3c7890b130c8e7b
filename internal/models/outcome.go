package models

// FailureKind classifies a per-message mutation failure.
type FailureKind string

const (
	// FailureDelete means the delete call was rejected and the message is
	// still on its queue.
	FailureDelete FailureKind = "delete-failed"

	// FailureLostInTransit means a move deleted the message from the source
	// queue but the enqueue to the destination failed. The message may be
	// gone from both queues, which is why this kind is never merged into
	// ordinary failures.
	FailureLostInTransit FailureKind = "lost-in-transit"
)

// MessageFailure records one failed message attempt, in attempt order.
type MessageFailure struct {
	MessageID string
	Kind      FailureKind
	Reason    string
}

// MutationOutcome is the complete accounting of one delete or move run.
//
// Invariant: Succeeded + Failed + NotAttempted == Requested once the run
// returns. NotAttempted is only non-zero when the run was cancelled or the
// broker became unreachable mid-run; those messages were not touched.
type MutationOutcome struct {
	Requested    int
	Succeeded    int
	Failed       int
	NotAttempted int
	Failures     []MessageFailure
}

// Lost reports how many failures were of the lost-in-transit kind.
func (o *MutationOutcome) Lost() int {
	n := 0
	for _, f := range o.Failures {
		if f.Kind == FailureLostInTransit {
			n++
		}
	}
	return n
}
