package ingestion_engine

// State is a step of one ingestion run. Runs move forward through the
// states in declaration order; StateFailed can follow any of them.
type State int

const (
	StateReceived State = iota
	StateLoaded
	StateChunked
	StateEmbedding
	StateAssembled
	StateIndexed
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateLoaded:
		return "loaded"
	case StateChunked:
		return "chunked"
	case StateEmbedding:
		return "embedding"
	case StateAssembled:
		return "assembled"
	case StateIndexed:
		return "indexed"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// canAdvance reports whether next is a legal successor of s.
func (s State) canAdvance(next State) bool {
	switch {
	case s.Terminal():
		return false
	case next == StateFailed:
		return true
	case s == StateChunked && next == StateDone:
		// a document without chunks skips embedding and indexing
		return true
	default:
		return next == s+1
	}
}
