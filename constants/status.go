package constants

// DocumentStatus is the lifecycle status stored on documents.status.
type DocumentStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending    DocumentStatus = "PENDING"    // set at intake
	StatusProcessing DocumentStatus = "PROCESSING" // a pipeline run owns the document
	StatusCompleted  DocumentStatus = "COMPLETED"  // terminal
	StatusFailed     DocumentStatus = "FAILED"     // terminal
)

var transitions = map[DocumentStatus][]DocumentStatus{
	StatusPending:    {StatusProcessing, StatusFailed},
	StatusProcessing: {StatusCompleted, StatusFailed},
}

// IsTerminal reports whether no further transition may leave s.
func (s DocumentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known statuses.
func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether from -> to is a legal edge.
func CanTransition(from, to DocumentStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PredecessorsOf lists every status that may legally move to "to".
// Repositories use it as the WHERE guard of a status update.
func PredecessorsOf(to DocumentStatus) []DocumentStatus {
	var out []DocumentStatus
	for _, from := range []DocumentStatus{StatusPending, StatusProcessing, StatusCompleted, StatusFailed} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
